package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"

	"github.com/minio/selfupdate"
	"github.com/ulikunitz/xz"
	"golang.org/x/mod/semver"
)

var releaseAPI = "https://api.github.com/repos/%s/releases/latest"

// latestRelease fetches the tag name of the newest GitHub release.
func latestRelease(client *http.Client) (string, error) {
	resp, err := client.Get(fmt.Sprintf(releaseAPI, GithubRepo))
	if err != nil {
		return "", fmt.Errorf("check for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned HTTP %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("parse release info: %w", err)
	}
	if release.TagName != "" {
		return release.TagName, nil
	}
	return release.Name, nil
}

// releaseAssetURL returns the xz-compressed binary URL for this platform.
func releaseAssetURL(tag, goos, goarch string) string {
	ext := "xz"
	if goos == "windows" {
		ext = "exe.xz"
	}
	return fmt.Sprintf("https://github.com/%s/releases/download/%s/pixconv-%s-%s.%s",
		GithubRepo, tag, goos, goarch, ext)
}

// applyUpdate decompresses an xz stream and replaces the running binary.
func applyUpdate(body io.Reader, opts selfupdate.Options) error {
	r, err := xz.NewReader(body)
	if err != nil {
		return fmt.Errorf("xz decompression: %w", err)
	}
	return selfupdate.Apply(r, opts)
}

func selfUpdate() {
	fmt.Printf("Current version: %s-%s\n", Version, CommitHash)

	latest, err := latestRelease(http.DefaultClient)
	if err != nil {
		log.Fatalf("Update check failed: %v", err)
	}
	fmt.Printf("Latest release: %s\n", latest)

	switch semver.Compare(latest, Version) {
	case -1:
		fmt.Println("You have a newer version than the latest release.")
		return
	case 0:
		fmt.Println("Already up to date.")
		return
	}
	fmt.Println("New version available, upgrading...")
	if Version == "v0.0.0" {
		fmt.Print("Development build detected, press Enter to proceed: ")
		bufio.NewReader(os.Stdin).ReadBytes('\n')
	}

	downloadURL := releaseAssetURL(latest, runtime.GOOS, runtime.GOARCH)
	opts := selfupdate.Options{}
	if err := opts.CheckPermissions(); err != nil {
		fmt.Printf("Cannot update in place (permission denied).\nDownload manually: %s\n", downloadURL)
		return
	}

	fmt.Printf("Downloading %s...\n", downloadURL)
	resp, err := http.Get(downloadURL)
	if err != nil {
		log.Fatalf("Download failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Download returned HTTP %d", resp.StatusCode)
	}
	if err := applyUpdate(resp.Body, opts); err != nil {
		log.Fatalf("Update failed: %v", err)
	}

	fmt.Printf("Updated to %s successfully.\n", latest)
}

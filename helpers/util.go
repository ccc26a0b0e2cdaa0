package helpers

import (
	"errors"
	"net/url"
	"strings"
)

func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index < 0 || index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// LastPathSegment returns the final path segment of a URL, which on listing
// detail pages is the listing number.
func LastPathSegment(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", errors.New("url has no path")
	}
	return GetSplitPart(path, "/", strings.Count(path, "/"))
}

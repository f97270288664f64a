package net

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrorURLNotFound is returned when the server answers 404.
var ErrorURLNotFound = errors.New("URL not found")

// IsURL reports whether location should be fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open returns a reader over location: http(s) URLs are fetched, anything else
// is opened as a local file. A non-empty token is sent as a bearer token.
func Open(ctx context.Context, location, token string) (io.ReadCloser, error) {
	if !IsURL(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrapf(err, "error opening file: %s", location)
		}
		return f, nil
	}

	resp, err := getResp(ctx, location, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errors.Wrap(ErrorURLNotFound, location)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("error downloading file (status: %d - %s): %s", resp.StatusCode, resp.Status, location)
	}
	return resp.Body, nil
}

// Download saves the content of url into path.
func Download(ctx context.Context, url, path, token string) (retErr error) {
	body, err := Open(ctx, url, token)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating file: %s", path)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	if _, err = io.Copy(out, body); err != nil {
		return fmt.Errorf("error saving downloaded content to file: %w", err)
	}
	return nil
}

func getResp(ctx context.Context, url, token string) (*http.Response, error) {
	var (
		c   *http.Client
		err error
	)
	if token != "" {
		c, err = GetOAuthClient(ctx, token)
	} else {
		c, err = GetHTTPClient()
	}
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := c.Do(req) //nolint:gosec // dataset locations come from the experiment config
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", url, err)
	}
	return resp, nil
}

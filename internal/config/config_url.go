// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL validates an absolute http or https URL. Paths are allowed
// (issuers such as https://auth.example.com/realms/cafe carry one).
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// validateOrigin validates a CORS origin: scheme and host, nothing else.
func validateOrigin(origin string) error {
	if err := validateHTTPURL(origin, "CORS_ORIGINS"); err != nil {
		return err
	}
	parsedURL, _ := url.Parse(origin)
	if (parsedURL.Path != "" && parsedURL.Path != "/") || parsedURL.RawQuery != "" {
		return fmt.Errorf("CORS_ORIGINS entry %q must be an origin without path or query", origin)
	}
	return nil
}

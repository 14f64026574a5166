package util

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/user/netmap/internal/model"
)

// NormalizeURL trims whitespace and trailing slashes.
func NormalizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ValidateURL checks a controller URL as entered at setup time.
func ValidateURL(raw string) error {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil {
		if strings.Contains(err.Error(), "invalid port") {
			return model.NewError(model.KindInvalidPort, "invalid port", err)
		}
		return model.NewError(model.KindInvalidURL, "invalid url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewError(model.KindInvalidURL, "url scheme must be http or https", nil)
	}
	if u.User != nil {
		return model.NewError(model.KindURLHasCredentials, "url must not contain credentials", nil)
	}
	if u.Hostname() == "" {
		return model.NewError(model.KindInvalidURL, "url has no host", nil)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return model.NewError(model.KindInvalidPort, "invalid port", err)
		}
	}
	return nil
}

// ValidateEntry runs every setup-time check on an entry config.
func ValidateEntry(e EntryConfig) error {
	if err := ValidateURL(e.URL); err != nil {
		return err
	}
	for field, value := range map[string]string{
		"username": e.Username,
		"password": e.Password,
		"site":     e.Site,
	} {
		if strings.TrimSpace(value) == "" {
			return model.NewError(model.KindEmptyCredential, field+" must not be empty", nil)
		}
	}
	return nil
}

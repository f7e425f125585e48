package protocol

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AuthProtocolVersion is the sentry_version reported in auth headers.
const AuthProtocolVersion = "7"

// DSN is the parsed access descriptor for an ingestion endpoint.
//
// The textual form is {scheme}://{publicKey}@{host}[:port]{path}/{projectID}.
type DSN struct {
	raw       string
	scheme    string
	publicKey string
	host      string
	path      string
	projectID string
}

// ParseDSN validates a DSN string.
func ParseDSN(raw string) (*DSN, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid DSN: %v", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf(
			"protocol: invalid DSN: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("protocol: invalid DSN: missing host")
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return nil, fmt.Errorf("protocol: invalid DSN: missing public key")
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	lastSlash := strings.LastIndex(path, "/")
	if lastSlash < 0 {
		return nil, fmt.Errorf("protocol: invalid DSN: missing project ID")
	}

	projectID := path[lastSlash+1:]
	if _, err := strconv.ParseUint(projectID, 10, 64); err != nil {
		return nil, fmt.Errorf(
			"protocol: invalid DSN: project ID %q is not numeric", projectID)
	}

	return &DSN{
		raw:       raw,
		scheme:    parsed.Scheme,
		publicKey: parsed.User.Username(),
		host:      parsed.Host,
		path:      path[:lastSlash],
		projectID: projectID,
	}, nil
}

func (d *DSN) String() string    { return d.raw }
func (d *DSN) ProjectID() string { return d.projectID }
func (d *DSN) PublicKey() string { return d.publicKey }

// EnvelopeURL is the ingestion endpoint for envelope submissions.
func (d *DSN) EnvelopeURL() string {
	return fmt.Sprintf("%s://%s%s/api/%s/envelope/",
		d.scheme, d.host, d.path, d.projectID)
}

// AuthHeader builds the X-Sentry-Auth value for a request sent now.
func (d *DSN) AuthHeader(now time.Time, client SDKInfo) string {
	return fmt.Sprintf(
		"Sentry sentry_version=%s, sentry_client=%s,"+
			" sentry_timestamp=%d, sentry_key=%s",
		AuthProtocolVersion,
		client.ClientName(),
		now.Unix(),
		d.publicKey,
	)
}

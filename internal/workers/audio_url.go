package workers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var (
	ErrAudioURLNotAllowed = errors.New("audio_url is not allowed")
	errBlockedAddress     = errors.New("audio_url resolves to a non-public address")
)

// AudioURLPolicy lists the hosts a worker may download chunk audio from.
// An empty policy disables audio_url entirely.
type AudioURLPolicy struct {
	Hosts []string
}

// Check accepts only https URLs on a listed host that is not an IP literal
// in a loopback, private or link-local range.
func (pol AudioURLPolicy) Check(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioURLNotAllowed, err)
	}
	if u.Scheme != "https" || u.User != nil {
		return nil, fmt.Errorf("%w: https without credentials required", ErrAudioURLNotAllowed)
	}

	host := strings.ToLower(u.Hostname())
	if ip := net.ParseIP(host); ip != nil && blockedIP(ip) {
		return nil, fmt.Errorf("%w: %s", ErrAudioURLNotAllowed, errBlockedAddress)
	}
	for _, h := range pol.Hosts {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: host %q", ErrAudioURLNotAllowed, host)
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast()
}

// dialControl runs after DNS resolution, so a listed host that resolves to an
// internal address is still refused.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || blockedIP(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	return nil
}

// newAudioClient re-applies pol on every redirect and refuses to connect to
// non-public addresses.
func newAudioClient(pol AudioURLPolicy, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, Control: dialControl}
	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			_, err := pol.Check(req.URL.String())
			return err
		},
	}
}

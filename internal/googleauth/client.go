package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/yuxzhang97/storefront/internal/errs"
)

// Profile is the subset of the Google userinfo response the identity
// service needs.
type Profile struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Client exchanges an OAuth access token for the owner's profile. Timeout
// bounds every exchange regardless of the caller's context.
type Client struct {
	UserInfoURL string
	Timeout     time.Duration
}

func NewClient(userInfoURL string, timeout time.Duration) *Client {
	return &Client{UserInfoURL: userInfoURL, Timeout: timeout}
}

// Profile calls the userinfo endpoint with the given bearer token. A
// provider timeout surfaces as errs.ErrUnavailable so callers can retry,
// every other failure as errs.ErrUnknown.
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", errs.ErrInvalidArgument)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	httpClient := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build userinfo request: %v", errs.ErrUnknown, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: google userinfo timed out: %v", errs.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: google userinfo request failed: %v", errs.ErrUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: google userinfo returned %d: %s", errs.ErrUnknown, resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo response: %v", errs.ErrUnknown, err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: userinfo response has no email", errs.ErrUnknown)
	}

	return &profile, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

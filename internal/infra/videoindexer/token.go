package videoindexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/bryanwahyu/drishti/internal/application"
)

const (
	armScope          = "https://management.azure.com/.default"
	accountAPIVersion = "2024-01-01"
	refreshLeeway     = time.Minute
)

type cachedToken struct {
	value     string
	expiresAt time.Time
}

func (c cachedToken) fresh(now time.Time) bool {
	return c.value != "" && now.Add(refreshLeeway).Before(c.expiresAt)
}

// Account identifies the Video Indexer ARM resource.
type Account struct {
	SubscriptionID string
	ResourceGroup  string
	Name           string
}

// TokenSource exchanges an ARM token for a Video Indexer account token and
// caches both until they are about to expire.
type TokenSource struct {
	cred       azcore.TokenCredential
	httpClient *http.Client
	baseURL    string
	account    Account
	ttl        time.Duration
	clock      application.Clock

	mu   sync.Mutex
	arm  cachedToken
	acct cachedToken
}

func NewTokenSource(cred azcore.TokenCredential, httpClient *http.Client, managementBaseURL string, account Account, ttl time.Duration, clock application.Clock) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	if ttl <= 0 {
		ttl = 55 * time.Minute
	}
	return &TokenSource{
		cred:       cred,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(managementBaseURL, "/"),
		account:    account,
		ttl:        ttl,
		clock:      clock,
	}
}

// AccountToken returns a cached account token, refreshing it when needed.
func (t *TokenSource) AccountToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.acct.fresh(now) {
		return t.acct.value, nil
	}
	if !t.arm.fresh(now) {
		tok, err := t.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{armScope}})
		if err != nil {
			return "", fmt.Errorf("arm token: %w", err)
		}
		t.arm = cachedToken{value: tok.Token, expiresAt: tok.ExpiresOn}
	}

	value, err := t.generate(ctx, t.arm.value)
	if err != nil {
		return "", err
	}
	t.acct = cachedToken{value: value, expiresAt: now.Add(t.ttl)}
	return value, nil
}

// Invalidate drops the cached account token; the next call fetches a new one.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	t.acct = cachedToken{}
	t.mu.Unlock()
}

func (t *TokenSource) generate(ctx context.Context, armToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.VideoIndexer/accounts/%s/generateAccessToken?api-version=%s",
		t.baseURL,
		url.PathEscape(t.account.SubscriptionID),
		url.PathEscape(t.account.ResourceGroup),
		url.PathEscape(t.account.Name),
		accountAPIVersion,
	)
	payload, _ := json.Marshal(map[string]string{"permissionType": "Contributor", "scope": "Account"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("account token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+armToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("account token: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("account token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("account token: decode: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("account token: empty accessToken in response")
	}
	return out.AccessToken, nil
}

package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"propsignal/internal/config"
)

var (
	// ErrNotConfigured is returned when no geocoder API key is present.
	// Absence of credentials is a valid runtime mode: resolution degrades
	// to the rule-based address tier.
	ErrNotConfigured = errors.New("geoclient not configured")

	// ErrUnparseableAddress is returned when no house number + street can
	// be extracted from free text.
	ErrUnparseableAddress = errors.New("cannot parse house number and street")

	// ErrNoMatch is returned when the geocoder finds nothing.
	ErrNoMatch = errors.New("geoclient found no match")
)

var housePattern = regexp.MustCompile(`^\s*(\d+[A-Z]?(?:-\d+[A-Z]?)?)\s+(.+)$`)

// isZipCode distinguishes a 5-digit zip from a borough name; "BRONX" is
// also five characters long, so length alone cannot route the parameter.
func isZipCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GeocodeResult is a successful geocoder lookup. Confidence is 1.0 for an
// exact grade and 0.9 for a close-approximate grade; it is never blended
// with the address-key fallback, which runs at a different tier.
type GeocodeResult struct {
	BBL               string
	BIN               string
	Latitude          float64
	Longitude         float64
	NormalizedAddress string
	Confidence        float64
}

// Geoclient is the optional external geocoder, capability-gated on API-key
// presence.
type Geoclient struct {
	http    *http.Client
	baseURL string
	appKey  string
}

// NewGeoclient creates a geocoder client. Available() must be checked
// before calling Lookup.
func NewGeoclient(cfg config.GeoclientConfig) *Geoclient {
	return &Geoclient{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: cfg.BaseURL,
		appKey:  cfg.AppKey,
	}
}

// Available reports whether the geocoder can be used at all.
func (g *Geoclient) Available() bool {
	return g.appKey != ""
}

// ParseAddress splits free text into house number and street, failing fast
// when the text has no leading house number.
func ParseAddress(freeText string) (houseNumber, street string, err error) {
	m := housePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(freeText)))
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrUnparseableAddress, freeText)
	}
	return m[1], strings.TrimSpace(m[2]), nil
}

type geoclientResponse struct {
	Address struct {
		BBL              string  `json:"bbl"`
		BIN              string  `json:"buildingIdentificationNumber"`
		Latitude         float64 `json:"latitude"`
		Longitude        float64 `json:"longitude"`
		FirstStreetName  string  `json:"firstStreetNameNormalized"`
		HouseNumber      string  `json:"houseNumber"`
		GeosupportReturn string  `json:"geosupportReturnCode"`
	} `json:"address"`
}

// Lookup geocodes a free-text address within a borough or zip. Returns
// ErrNotConfigured without any network call when the key is absent.
func (g *Geoclient) Lookup(ctx context.Context, freeText, boroughOrZip string) (*GeocodeResult, error) {
	if !g.Available() {
		return nil, ErrNotConfigured
	}

	houseNumber, street, err := ParseAddress(freeText)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("houseNumber", houseNumber)
	params.Set("street", street)
	if isZipCode(boroughOrZip) {
		params.Set("zip", boroughOrZip)
	} else if boroughOrZip != "" {
		params.Set("borough", boroughOrZip)
	}

	reqURL := fmt.Sprintf("%s/address.json?%s", g.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating geoclient request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", g.appKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoclient request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geoclient returned %d: %s", resp.StatusCode, string(body))
	}

	var gr geoclientResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding geoclient response: %w", err)
	}

	// Geosupport return codes: 00 = exact, 01 = close approximation.
	// Anything else is a miss.
	var confidence float64
	switch gr.Address.GeosupportReturn {
	case "00":
		confidence = 1.0
	case "01":
		confidence = 0.9
	default:
		return nil, fmt.Errorf("%w: return code %q", ErrNoMatch, gr.Address.GeosupportReturn)
	}

	normalized := strings.TrimSpace(gr.Address.HouseNumber + " " + gr.Address.FirstStreetName)
	return &GeocodeResult{
		BBL:               gr.Address.BBL,
		BIN:               gr.Address.BIN,
		Latitude:          gr.Address.Latitude,
		Longitude:         gr.Address.Longitude,
		NormalizedAddress: normalized,
		Confidence:        confidence,
	}, nil
}

package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// fingerprintRow fixes the serialization of a record. Fields are declared in
// alphabetical key order, which encoding/json preserves.
type fingerprintRow struct {
	AccessType             string   `json:"access_type"`
	EarlyWithdrawalPenalty string   `json:"early_withdrawal_penalty"`
	EthicalRating          *string  `json:"ethical_rating"`
	FSCSCovered            bool     `json:"fscs_covered"`
	InterestRatePct        *float64 `json:"interest_rate_pct"`
	LastScraped            string   `json:"last_scraped"`
	Market                 string   `json:"market"`
	ProductName            string   `json:"product_name"`
	Provider               string   `json:"provider"`
	ProviderType           string   `json:"provider_type"`
	Tenure                 string   `json:"tenure"`
	URL                    string   `json:"url"`
}

func serialize(r Record) (string, error) {
	b, err := json.Marshal(fingerprintRow{
		AccessType:             r.AccessType,
		EarlyWithdrawalPenalty: r.EarlyWithdrawalPenalty,
		EthicalRating:          r.EthicalRating,
		FSCSCovered:            r.FSCSCovered,
		InterestRatePct:        r.InterestRatePct,
		LastScraped:            r.LastScraped.UTC().Format(TimestampLayout),
		Market:                 r.Market,
		ProductName:            r.ProductName,
		Provider:               r.Provider,
		ProviderType:           r.ProviderType,
		Tenure:                 r.Tenure,
		URL:                    r.URL,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fingerprint returns the hex SHA-256 digest of the dataset content. Rows are
// serialized individually and sorted before hashing, so the result does not
// depend on row order.
func Fingerprint(d Dataset) (string, error) {
	rows := make([]string, 0, len(d))
	for _, r := range d {
		s, err := serialize(r)
		if err != nil {
			return "", err
		}
		rows = append(rows, s)
	}
	sort.Strings(rows)

	sum := sha256.Sum256([]byte(strings.Join(rows, "")))
	return hex.EncodeToString(sum[:]), nil
}

package catalogue

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Entry is one static deposit product. Entries are loaded once at startup
// and never mutated afterwards.
type Entry struct {
	Provider               string  `yaml:"provider"`
	ProductName            string  `yaml:"product_name"`
	Market                 string  `yaml:"market"`
	ProviderType           string  `yaml:"provider_type"`
	AccessType             string  `yaml:"access_type"`
	FSCSCovered            bool    `yaml:"fscs_covered"`
	EthicalRating          *string `yaml:"ethical_rating"`
	EarlyWithdrawalPenalty string  `yaml:"early_withdrawal_penalty"`
	Tenure                 string  `yaml:"tenure"`
	URL                    string  `yaml:"url"`
}

// Key identifies an entry by provider and product name.
func (e Entry) Key() string {
	return e.Provider + "/" + e.ProductName
}

// Equal reports whether two entries hold the same attributes. Ethical
// ratings are compared by value.
func (e Entry) Equal(o Entry) bool {
	er, or := e.EthicalRating, o.EthicalRating
	e.EthicalRating, o.EthicalRating = nil, nil
	if e != o {
		return false
	}
	if er == nil || or == nil {
		return er == or
	}
	return *er == *or
}

// Catalogue is the ordered list of products to scrape.
type Catalogue []Entry

// Matches reports whether entries lists exactly the products of c, in order.
func (c Catalogue) Matches(entries []Entry) bool {
	if len(c) != len(entries) {
		return false
	}
	for i := range c {
		if !c[i].Equal(entries[i]) {
			return false
		}
	}
	return true
}

type file struct {
	Products []Entry `yaml:"products"`
}

// Load reads a catalogue from a YAML file of the form:
//
//	products:
//	  - provider: DBS
//	    product_name: DBS Fixed Deposit
//	    ...
func Load(path string) (Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalogue document.
func Parse(raw []byte) (Catalogue, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode catalogue: %w", err)
	}

	c := Catalogue(f.Products)
	for i := range c {
		c[i] = normalize(c[i])
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func normalize(e Entry) Entry {
	e.Provider = strings.TrimSpace(e.Provider)
	e.ProductName = strings.TrimSpace(e.ProductName)
	e.URL = strings.TrimSpace(e.URL)
	if e.EthicalRating != nil && strings.TrimSpace(*e.EthicalRating) == "" {
		e.EthicalRating = nil
	}
	return e
}

// Validate checks that every entry is scrapeable and that identities are unique.
func (c Catalogue) Validate() error {
	if len(c) == 0 {
		return errors.New("catalogue is empty")
	}

	var problems []string
	seen := make(map[string]int, len(c))
	for i, e := range c {
		if e.Provider == "" {
			problems = append(problems, fmt.Sprintf("entry %d: missing provider", i))
		}
		if e.ProductName == "" {
			problems = append(problems, fmt.Sprintf("entry %d: missing product_name", i))
		}
		if u, err := url.Parse(e.URL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("entry %d: invalid url %q", i, e.URL))
		}
		if prev, ok := seen[e.Key()]; ok {
			problems = append(problems, fmt.Sprintf("entry %d: duplicate of entry %d (%s)", i, prev, e.Key()))
		}
		seen[e.Key()] = i
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid catalogue: %s", strings.Join(problems, "; "))
	}
	return nil
}

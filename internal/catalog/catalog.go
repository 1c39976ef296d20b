// Package catalog loads the scenario and persona definitions a trainer
// picks from when launching a run.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one phishing playbook the offender agent executes.
type Scenario struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Category    string   `yaml:"category,omitempty"` // e.g. credential_harvest, invoice_fraud
	Rounds      int      `yaml:"rounds,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// Persona describes an offender or victim profile.
type Persona struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Catalog holds everything a run can be parameterized with.
type Catalog struct {
	Scenarios []Scenario `yaml:"scenarios"`
	Offenders []Persona  `yaml:"offenders"`
	Victims   []Persona  `yaml:"victims"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]string)
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s entry missing id", kind)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("duplicate id %q (%s and %s)", id, prev, kind)
		}
		seen[id] = kind
		return nil
	}
	for _, s := range c.Scenarios {
		if err := check("scenario", s.ID); err != nil {
			return err
		}
	}
	for _, p := range c.Offenders {
		if err := check("offender", p.ID); err != nil {
			return err
		}
	}
	for _, p := range c.Victims {
		if err := check("victim", p.ID); err != nil {
			return err
		}
	}
	return nil
}

// Scenario looks up a scenario by ID.
func (c *Catalog) Scenario(id string) (Scenario, bool) {
	for _, s := range c.Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// Offender looks up an offender persona by ID.
func (c *Catalog) Offender(id string) (Persona, bool) {
	return findPersona(c.Offenders, id)
}

// Victim looks up a victim persona by ID.
func (c *Catalog) Victim(id string) (Persona, bool) {
	return findPersona(c.Victims, id)
}

func findPersona(list []Persona, id string) (Persona, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

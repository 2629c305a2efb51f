/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the scheduler's startup configuration: the YAML file
// at /init/<schedulerName>.yaml plus the scheduler name, which the caller
// reads from the SNAME environment variable and passes to Load.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Settings is the parsed contents of /init/<schedulerName>.yaml.
type Settings struct {
	Namespace           string   `yaml:"namespace" validate:"required"`
	LogLevel            string   `yaml:"logLevel"`
	DataCentresLabel    string   `yaml:"dataCentresLabel" validate:"required"`
	PrimaryDataCentres  []string `yaml:"primaryDataCentres" validate:"required,min=1"`
	NoPrimaryDataCentres []string `yaml:"noPrimaryDataCentres" validate:"required,min=1"`

	// SchedulerName is populated from the SNAME environment variable, not
	// the YAML file; it is the value pods must set spec.schedulerName to in
	// order to be admitted by the watch loop.
	SchedulerName string `yaml:"-" validate:"required"`
}

// Debug reports whether logLevel selects verbose logging.
func (s Settings) Debug() bool {
	return strings.EqualFold(s.LogLevel, "DEBUG")
}

// Load reads and validates the configuration file for the given scheduler
// name. path defaults to "/init/<name>.yaml" when empty.
func Load(path, schedulerName string) (Settings, error) {
	if path == "" {
		path = fmt.Sprintf("/init/%s.yaml", schedulerName)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	s.SchedulerName = schedulerName
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validating config %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the required fields are present and that the primary and
// non-primary data-centre lists are disjoint (a data centre cannot be both
// the deterministic home of the primary replicas and the random home of the
// arbiter), combining every independent check into one reported error.
func (s Settings) Validate() error {
	var err error
	err = multierr.Append(err, validator.New().Struct(s))
	primary := map[string]bool{}
	for _, dc := range s.PrimaryDataCentres {
		primary[dc] = true
	}
	for _, dc := range s.NoPrimaryDataCentres {
		if primary[dc] {
			err = multierr.Append(err, fmt.Errorf("data centre %q listed in both primaryDataCentres and noPrimaryDataCentres", dc))
		}
	}
	return err
}

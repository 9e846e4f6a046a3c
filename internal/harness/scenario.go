package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/ident"
)

// Scenario drives one engine through a list of steps against a scripted
// collector and then checks assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Device is what the simulated resolver reports.
	Device Device `yaml:"device"`

	// CheckInterval defaults to two seconds.
	CheckInterval time.Duration `yaml:"check_interval,omitempty"`

	// HeartbeatInterval defaults to one hour so heartbeats only ride along
	// with the first batch unless a scenario asks otherwise.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Device configures the simulated device resolver.
type Device struct {
	Platform          string `yaml:"platform,omitempty"`
	ID                string `yaml:"id,omitempty"`
	AdvertisingID     string `yaml:"advertising_id,omitempty"`
	AdTrackingEnabled *bool  `yaml:"ad_tracking_enabled,omitempty"`
}

func (d Device) info() ident.DeviceInfo {
	id := d.ID
	if id == "" {
		id = "dev-1"
	}
	tracking := true
	if d.AdTrackingEnabled != nil {
		tracking = *d.AdTrackingEnabled
	}
	return ident.DeviceInfo{
		Platform:          ident.ParsePlatform(d.Platform),
		DeviceID:          id,
		AdvertisingID:     d.AdvertisingID,
		AdTrackingEnabled: tracking,
	}
}

// Step is one action against the engine or its environment.
type Step struct {
	// Do selects the action, see the Step* constants.
	Do string `yaml:"do"`

	// Count is the number of ticks for "tick" (default 1) or of scripted
	// failures for "fail_sends" and "fail_probes".
	Count int `yaml:"count,omitempty"`

	// Duration is how far "advance" moves the clock.
	Duration time.Duration `yaml:"duration,omitempty"`

	// Event is the body queued by "track". It must carry a type.
	Event map[string]any `yaml:"event,omitempty"`

	// ID and Value are used by "set_id" and "clear_id".
	ID    string `yaml:"id,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Step actions.
const (
	StepStart      = "start"
	StepTick       = "tick"
	StepAdvance    = "advance"
	StepTrack      = "track"
	StepFailSends  = "fail_sends"
	StepFailProbes = "fail_probes"
	StepHold       = "hold"
	StepRelease    = "release"
	StepPause      = "pause"
	StepResume     = "resume"
	StepSuspend    = "suspend"
	StepSetID      = "set_id"
	StepClearID    = "clear_id"
	StepClose      = "close"
	StepRestart    = "restart"
)

// Assertion checks the engine and collector after the last step.
type Assertion struct {
	// Type selects the check, see the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number for count checks.
	Count int `yaml:"count,omitempty"`

	// Value is the expected state name, availability or identity value.
	Value string `yaml:"value,omitempty"`

	// Batch indexes the sent batches for batch_types, from zero.
	Batch int `yaml:"batch,omitempty"`

	// Types are the expected event types of a batch, in order.
	Types []string `yaml:"types,omitempty"`

	// ID names the identity for id_value.
	ID string `yaml:"id,omitempty"`
}

// Assertion types.
const (
	AssertSends      = "sends"
	AssertProbes     = "probes"
	AssertPending    = "pending"
	AssertInFlight   = "in_flight"
	AssertPersisted  = "persisted"
	AssertState      = "state"
	AssertAvailable  = "server_available"
	AssertBatchTypes = "batch_types"
	AssertIDValue    = "id_value"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps must not be empty")
	}
	if s.CheckInterval < 0 || s.HeartbeatInterval < 0 {
		return errors.New("intervals must not be negative")
	}
	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, index int) error {
	switch step.Do {
	case StepStart, StepHold, StepRelease, StepPause, StepResume, StepSuspend, StepClose, StepRestart:
	case StepTick:
		if step.Count < 0 {
			return fmt.Errorf("steps[%d]: count must be non-negative for tick", index)
		}
	case StepAdvance:
		if step.Duration <= 0 {
			return fmt.Errorf("steps[%d]: duration is required for advance", index)
		}
	case StepTrack:
		typ, _ := step.Event[event.TypeKey].(string)
		if typ == "" {
			return fmt.Errorf("steps[%d]: event.type is required for track", index)
		}
	case StepFailSends, StepFailProbes:
		if step.Count <= 0 {
			return fmt.Errorf("steps[%d]: count must be positive for %s", index, step.Do)
		}
	case StepSetID, StepClearID:
		if _, ok := lookupID(step.ID); !ok {
			return fmt.Errorf("steps[%d]: unknown id %q", index, step.ID)
		}
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, step.Do)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	switch a.Type {
	case AssertSends, AssertProbes, AssertPending, AssertInFlight, AssertPersisted:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertState, AssertAvailable:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	case AssertBatchTypes:
		if a.Batch < 0 {
			return fmt.Errorf("assertions[%d]: batch must be non-negative", index)
		}
	case AssertIDValue:
		if _, ok := lookupID(a.ID); !ok {
			return fmt.Errorf("assertions[%d]: unknown id %q", index, a.ID)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// lookupID maps an identity name such as "facebook" onto its type.
func lookupID(name string) (ident.Type, bool) {
	for _, t := range ident.Types() {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

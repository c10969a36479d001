// internal/form/definition.go
//
// Signup – Forms subsystem: YAML definition loader.
//
// Context
//   Each form is declared in a YAML file.  The file names the form, lists
//   its fields in display order, attaches a validation rule and an optional
//   input mask to each field, and declares the post-submit actions.  The
//   registration form ships embedded in the binary (forms/registration.yaml);
//   operators may override it by dropping a file with the same id under
//   “<root>/forms/”.  Parsed definitions live in an in-memory registry and
//   every other part of the package (controller, renderer, dispatcher) reads
//   them from there.
//
// Workflow
//   •  Structs mirror the YAML schema: FormDef → FieldDef / ActionDef.
//   •  ParseFormDef decodes one document and validates structural rules,
//      including that every referenced rule and mask exists.
//   •  RegisterDefaults loads the embedded definitions.  RegisterForms walks
//      override directories afterwards, so later files replace earlier ones.
//   •  GetFormDef offers read-only access to a parsed form by ID.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yanizio/signup/internal/mask"
	"github.com/yanizio/signup/internal/registration"
	"github.com/yanizio/signup/internal/rules"
)

//go:embed forms/*.yaml
var embedded embed.FS

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
type FormDef struct {
	ID      string      `yaml:"id"`      // Unique identifier, e.g. “registration”.
	Title   string      `yaml:"title"`   // Display title, optional.
	Success string      `yaml:"success"` // Confirmation shown after submit.
	Fields  []FieldDef  `yaml:"fields"`  // Display order.
	Actions []ActionDef `yaml:"actions"` // Post-submit actions.
}

// FieldDef describes a single input control.
type FieldDef struct {
	Name        string `yaml:"name"`        // Submission key.  Required.
	Label       string `yaml:"label"`       // Human-readable label.  Required.
	Type        string `yaml:"type"`        // text, email, or tel.
	Placeholder string `yaml:"placeholder"` // Optional placeholder text.
	MaxLength   int    `yaml:"maxlength"`   // ≥ 0, 0 means unset.
	Rule        string `yaml:"rule"`        // Name in the rules registry.  Empty accepts anything.
	Mask        string `yaml:"mask"`        // Name in the mask registry, optional.
}

// ActionDef configures an automated action executed after validation.
// Provider-specific keys are kept inline in Params.
type ActionDef struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:",inline"`
}

// Field returns the FieldDef named name.
func (fd *FormDef) Field(name string) (*FieldDef, bool) {
	for i := range fd.Fields {
		if fd.Fields[i].Name == name {
			return &fd.Fields[i], true
		}
	}
	return nil, false
}

// Action returns the first action of the given type.
func (fd *FormDef) Action(typ string) (ActionDef, bool) {
	for _, a := range fd.Actions {
		if a.Type == typ {
			return a, true
		}
	}
	return ActionDef{}, false
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*FormDef)
)

// GetFormDef returns a parsed FormDef by ID.  The boolean is false when the
// ID is unknown.
func GetFormDef(id string) (*FormDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fd, ok := registry[id]
	return fd, ok
}

func register(fd *FormDef) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[fd.ID] = fd
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// ParseFormDef decodes raw YAML, validates it, and returns the FormDef.
// source names the origin in error messages.  It never touches the registry.
func ParseFormDef(raw []byte, source string) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", source, err)
	}
	if err := validateFormDef(&fd, source); err != nil {
		return nil, err
	}
	return &fd, nil
}

// LoadFormDef reads and parses one YAML file.
func LoadFormDef(path string) (*FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}
	return ParseFormDef(raw, path)
}

// RegisterDefaults loads the form definitions compiled into the binary.
func RegisterDefaults() error {
	return fs.WalkDir(embedded, "forms", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := embedded.ReadFile(path)
		if err != nil {
			return err
		}
		fd, err := ParseFormDef(raw, "embedded:"+path)
		if err != nil {
			return err
		}
		register(fd)
		return nil
	})
}

// RegisterForms loads every “*.yaml” under each directory in dirs.  Later
// directories override earlier ones, and all of them override the embedded
// defaults.  Missing directories are skipped.
func RegisterForms(dirs []string) error {
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
				return nil
			}
			fd, err := LoadFormDef(path)
			if err != nil {
				return err // fail fast so issues surface loudly.
			}
			register(fd)
			zap.S().Infow("form definition loaded", "form", fd.ID, "file", path)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

var (
	validTypes   = map[string]bool{"text": true, "email": true, "tel": true}
	validActions = map[string]bool{"webhook": true}
)

// RegistrationID is the form whose values become the webhook payload.
const RegistrationID = "registration"

// registrationFields lists the payload fields with the rule each must carry,
// so an override cannot drop a field or its validation.
var registrationFields = []struct{ name, rule string }{
	{registration.FieldFirstName, "name"},
	{registration.FieldLastName, "name"},
	{registration.FieldEmail, "takeat_email"},
	{registration.FieldPhone, "br_mobile"},
}

// validateFormDef enforces structural rules that YAML tags cannot express.
func validateFormDef(fd *FormDef, source string) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", source)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", source)
	}

	seen := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := validateField(f, source); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", source, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	if fd.ID == RegistrationID {
		for _, want := range registrationFields {
			f, ok := fd.Field(want.name)
			if !ok {
				return fmt.Errorf("form %s: registration requires field '%s'", source, want.name)
			}
			if f.Rule != want.rule {
				return fmt.Errorf("form %s: field '%s' must use rule %q, got %q", source, want.name, want.rule, f.Rule)
			}
		}
	}

	for _, ac := range fd.Actions {
		if !validActions[ac.Type] {
			zap.S().Warnw("unrecognized form action", "form", fd.ID, "action", ac.Type)
		}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, source string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", source)
	}
	if f.Label == "" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", source, f.Name)
	}
	if f.Type == "" {
		f.Type = "text"
	}
	if !validTypes[f.Type] {
		return fmt.Errorf("form %s: field '%s' has unsupported type %q", source, f.Name, f.Type)
	}
	if f.MaxLength < 0 {
		return fmt.Errorf("form %s: field '%s' maxlength cannot be negative", source, f.Name)
	}
	if f.Rule != "" {
		if _, ok := rules.Lookup(f.Rule); !ok {
			return fmt.Errorf("form %s: field '%s' references unknown rule %q", source, f.Name, f.Rule)
		}
	}
	if f.Mask != "" {
		if _, ok := mask.Lookup(f.Mask); !ok {
			return fmt.Errorf("form %s: field '%s' references unknown mask %q", source, f.Name, f.Mask)
		}
	}
	return nil
}

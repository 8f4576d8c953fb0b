package todo

// Abstraction grades how abstract a todo's content should be.
// Coarseness is monotonically non-increasing from feature down to task.
type Abstraction string

const (
	AbstractionHigh       Abstraction = "high"
	AbstractionMediumHigh Abstraction = "medium-high"
	AbstractionMedium     Abstraction = "medium"
	AbstractionLow        Abstraction = "low"
)

// DetailLevel grades how granular a todo's content may be.
type DetailLevel string

const (
	DetailHighLevel DetailLevel = "high-level"
	DetailFocused   DetailLevel = "focused"
	DetailGranular  DetailLevel = "granular"
)

// DetailType is a category of implementation detail that scope scanning
// can recognize in todo text.
type DetailType string

const (
	DetailFilePath       DetailType = "file_path"
	DetailCodeIdentifier DetailType = "code_identifier"
	DetailLineReference  DetailType = "line_reference"
	DetailShellCommand   DetailType = "shell_command"
)

// AllDetailTypes lists every recognized detail category.
var AllDetailTypes = []DetailType{
	DetailFilePath,
	DetailCodeIdentifier,
	DetailLineReference,
	DetailShellCommand,
}

// Scope is the abstraction/detail-level policy attached to a todo.
//
// AllowedDetails is the detail budget the todo's subtree may draw on;
// assignment only ever narrows it relative to the parent, never widens.
// ForbiddenDetails is what this todo's own text must not contain.
type Scope struct {
	Level            Tier         `json:"level"`
	Abstraction      Abstraction  `json:"abstraction"`
	DetailLevel      DetailLevel  `json:"detail_level"`
	AllowedDetails   []DetailType `json:"allowed_details,omitempty"`
	ForbiddenDetails []DetailType `json:"forbidden_details,omitempty"`
	InheritedFrom    string       `json:"inherited_from,omitempty"`

	// Violations holds findings attached under warn-mode enforcement,
	// pending later review. Block-mode rejections never reach storage.
	Violations []ScopeViolation `json:"violations,omitempty"`
}

// Allows reports whether the scope's detail budget includes dt.
func (s *Scope) Allows(dt DetailType) bool {
	for _, d := range s.AllowedDetails {
		if d == dt {
			return true
		}
	}
	return false
}

// Forbids reports whether the todo's own text must not contain dt.
func (s *Scope) Forbids(dt DetailType) bool {
	for _, d := range s.ForbiddenDetails {
		if d == dt {
			return true
		}
	}
	return false
}

// ViolationType categorizes scope violations.
type ViolationType string

const (
	// ViolationForbiddenDetail marks text containing a detail category the
	// todo's tier forbids (implementation grain leaking upward).
	ViolationForbiddenDetail ViolationType = "forbidden_detail"
	// ViolationDisallowedDetail marks text containing a detail category the
	// inherited budget narrowed away.
	ViolationDisallowedDetail ViolationType = "disallowed_detail"
)

// ScopeViolation pinpoints one scope-creep finding in a todo's text.
type ScopeViolation struct {
	Type        ViolationType `json:"type"`
	DetailType  DetailType    `json:"detail_type"`
	Field       string        `json:"field"`
	Offset      int           `json:"offset"`
	Excerpt     string        `json:"excerpt"`
	Description string        `json:"description"`
}

// Package models defines the core data structures for the Asistente MGA.
//
// It includes the step table variants, the payloads returned to the chat
// client, and the API response envelope shared across modules.
package models

import "errors"

// StepKind determines how the flow engine interprets input at a step.
type StepKind string

const (
	// StepKindLinear stores the raw input and advances to Next.
	StepKindLinear StepKind = "linear"
	// StepKindGate routes on a yes/no classification of the input.
	StepKindGate StepKind = "gate"
	// StepKindSelect routes on keyword matches against the input.
	StepKindSelect StepKind = "select"
	// StepKindMultiSelect expects an encoded list of chosen labels.
	StepKindMultiSelect StepKind = "multiselect"
	// StepKindUpload gates advancement on a completed template upload.
	StepKindUpload StepKind = "upload"
)

// StepTerminal is the sentinel successor marking the end of the flow.
const StepTerminal = "finalizado"

// Multiselect wire encoding: prefix plus delimiter-separated labels.
const (
	MultiSelectPrefix    = "__msel__:"
	MultiSelectDelimiter = "|"
)

// TemplateCategory identifies which template layout an upload carries.
type TemplateCategory string

const (
	CategoryCausa     TemplateCategory = "causa"
	CategoryObjetivo  TemplateCategory = "objetivo"
	CategoryCombinado TemplateCategory = "combinado"
)

// IsValidTemplateCategory checks whether the given category is supported.
func IsValidTemplateCategory(c TemplateCategory) bool {
	switch c {
	case CategoryCausa, CategoryObjetivo, CategoryCombinado:
		return true
	default:
		return false
	}
}

// Error variables for step table and input validation.
var (
	ErrUnknownStep       = errors.New("unknown step id")
	ErrDanglingSuccessor = errors.New("step references a successor that does not exist")
	ErrEmptyStepID       = errors.New("step id cannot be empty")
	ErrDuplicateStepID   = errors.New("duplicate step id in table")
	ErrNoStartStep       = errors.New("start step not present in table")
)

// SelectRoute is one keyword route of a select step. The first route whose
// Match substring occurs in the lowercased input wins.
type SelectRoute struct {
	Match  string `json:"match"`
	Next   string `json:"next"`
	Record string `json:"record,omitempty"` // value stored under the step's RecordKey
}

// Step is one node of the conversation flow graph.
type Step struct {
	ID      string   `json:"id"`
	Kind    StepKind `json:"kind"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Next    string   `json:"next,omitempty"`

	// Gate fields. An empty DivertTopic means the negative branch advances
	// to NoNext instead of diverting into the free-form sub-mode.
	YesNext      string `json:"yes_next,omitempty"`
	NoNext       string `json:"no_next,omitempty"`
	DivertTopic  string `json:"divert_topic,omitempty"`
	DivertResume string `json:"divert_resume,omitempty"`

	// Select fields.
	RecordKey    string        `json:"record_key,omitempty"`
	Routes       []SelectRoute `json:"routes,omitempty"`
	CloseMessage string        `json:"close_message,omitempty"`

	// Multiselect fields.
	MultiSelectItems []string `json:"multiselect_items,omitempty"`
	SubmitText       string   `json:"submit_text,omitempty"`

	// Upload fields.
	Category TemplateCategory `json:"category,omitempty"`
}

// MultiSelectSpec tells the client to render a multi-select widget.
type MultiSelectSpec struct {
	Items      []string `json:"items"`
	SubmitText string   `json:"submit_text"`
}

// UploadSpec tells the client to render a template upload widget.
type UploadSpec struct {
	ExpectUpload bool   `json:"expect_upload"`
	Tipo         string `json:"tipo"`
	DownloadURL  string `json:"download_url"`
}

// StepPayload is the renderable answer of one flow engine advance.
type StepPayload struct {
	Response    string           `json:"response"`
	CurrentStep string           `json:"current_step"`
	Options     []string         `json:"options,omitempty"`
	Format      string           `json:"format"`
	MultiSelect *MultiSelectSpec `json:"multiselect,omitempty"`
	Upload      *UploadSpec      `json:"upload,omitempty"`
}

// ChatRequest is the inbound body of the chat endpoints.
type ChatRequest struct {
	Message string `json:"message"`
}

// UploadErrorCode classifies upload rejections for targeted client messages.
type UploadErrorCode string

const (
	UploadErrNotXLSX  UploadErrorCode = "not_xlsx"
	UploadErrBadType  UploadErrorCode = "bad_type"
	UploadErrEmpty    UploadErrorCode = "empty"
	UploadErrBadShape UploadErrorCode = "bad_shape"
	UploadErrParse    UploadErrorCode = "parse_error"
)

// UploadResult is the outcome of a template upload.
type UploadResult struct {
	OK        bool            `json:"ok"`
	Filename  string          `json:"filename,omitempty"`
	JSONFile  string          `json:"json_file,omitempty"`
	PreviewMD string          `json:"preview_md,omitempty"`
	ErrorCode UploadErrorCode `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

package scripts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/tailscale/hujson"
)

// Metadata is the declarative header of a script: a JSON document, comments
// and trailing commas allowed, between the first "/**" and the next "**/".
type Metadata struct {
	API         int    `json:"api"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Author      string `json:"author,omitempty"`
	Icon        string `json:"icon"`
	Tags        string `json:"tags,omitempty"`
}

// metadataDoc is the decoded header. Required keys must be present but may
// hold empty strings.
type metadataDoc struct {
	API         *int    `json:"api" validate:"required,gte=0"`
	Name        *string `json:"name" validate:"required"`
	Description *string `json:"description" validate:"required"`
	Author      *string `json:"author"`
	Icon        *string `json:"icon" validate:"required"`
	Tags        *string `json:"tags"`
}

// TagList splits the comma separated Tags, dropping empty entries.
func (m Metadata) TagList() []string {
	tags := []string{}
	for tag := range strings.SplitSeq(m.Tags, ",") {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ErrNoMetadata is returned when a source has no "/**" ... "**/" block.
var ErrNoMetadata = errors.New("no metadata block found")

// InvalidMetadataError reports a metadata block that is not a valid document.
type InvalidMetadataError struct {
	Cause error
}

func (e *InvalidMetadataError) Error() string {
	return "invalid metadata: " + e.Cause.Error()
}

func (e *InvalidMetadataError) Unwrap() error { return e.Cause }

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseMetadata extracts and decodes the metadata block of source.
func ParseMetadata(source string) (Metadata, error) {
	const open, closing = "/**", "**/"

	start := strings.Index(source, open)
	if start < 0 {
		return Metadata{}, ErrNoMetadata
	}
	body := source[start+len(open):]
	end := strings.Index(body, closing)
	if end < 0 {
		return Metadata{}, ErrNoMetadata
	}

	doc, err := hujson.Standardize([]byte(body[:end]))
	if err != nil {
		return Metadata{}, &InvalidMetadataError{Cause: err}
	}

	var md metadataDoc
	if err := json.Unmarshal(doc, &md); err != nil {
		return Metadata{}, &InvalidMetadataError{Cause: err}
	}
	if err := validate.Struct(md); err != nil {
		return Metadata{}, &InvalidMetadataError{Cause: fieldErrors(err)}
	}

	return Metadata{
		API:         *md.API,
		Name:        *md.Name,
		Description: *md.Description,
		Author:      lo.FromPtr(md.Author),
		Icon:        strings.ToLower(*md.Icon),
		Tags:        lo.FromPtr(md.Tags),
	}, nil
}

// fieldErrors flattens validator output into one readable error.
func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing %s", strings.ToLower(fe.Field())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}

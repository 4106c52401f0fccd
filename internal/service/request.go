package service

import (
	"encoding/json"

	"avrocompat/internal/compat"
	"avrocompat/internal/schema/types"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CheckRequest asks whether data written with Writer can be read with Reader.
// Both schemas are Avro schema JSON text.
type CheckRequest struct {
	ID           string `json:"id,omitempty"`
	Writer       string `json:"writer"`
	Reader       string `json:"reader"`
	Mutual       bool   `json:"mutual,omitempty"`
	ShortCircuit bool   `json:"short_circuit,omitempty"`
}

// CheckType is the judgment the request asks for
func (r CheckRequest) CheckType() types.CheckType {
	if r.Mutual {
		return types.MutualRead
	}
	return types.CanBeReadBy
}

// CheckResponse carries the verdict and findings for one CheckRequest
type CheckResponse struct {
	ID            string          `json:"id,omitempty" yaml:"id,omitempty"`
	Check         types.CheckType `json:"check" yaml:"check"`
	compat.Result `yaml:",inline"`
}

// Report flattens the response into its wire form, which is also what clients decode
func (r CheckResponse) Report() CheckReport {
	return CheckReport{ID: r.ID, Check: r.Check, Compatible: r.Compatible, Findings: reports(r.Findings)}
}

type CheckReport struct {
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
	Check      types.CheckType `json:"check" yaml:"check"`
	Compatible bool            `json:"compatible" yaml:"compatible"`
	Findings   []compat.Report `json:"findings" yaml:"findings"`
}

type BatchRequest struct {
	Checks []CheckRequest `json:"checks"`
}

type BatchResponse struct {
	Results []CheckResponse `json:"results" yaml:"results"`
}

func (r BatchResponse) Report() BatchReport {
	results := make([]CheckReport, len(r.Results))
	for i, res := range r.Results {
		results[i] = res.Report()
	}
	return BatchReport{Results: results}
}

type BatchReport struct {
	Results []CheckReport `json:"results" yaml:"results"`
}

// LevelRequest checks Schema against Previous, oldest first, under Level
type LevelRequest struct {
	Schema       string   `json:"schema"`
	Previous     []string `json:"previous"`
	Level        string   `json:"level"`
	ShortCircuit bool     `json:"short_circuit,omitempty"`
}

type LevelResponse struct {
	Level         types.CompatibilityLevel `json:"level" yaml:"level"`
	Checked       int                      `json:"checked" yaml:"checked"`
	compat.Result `yaml:",inline"`
}

func (r LevelResponse) Report() LevelReport {
	return LevelReport{Level: r.Level, Checked: r.Checked, Compatible: r.Compatible, Findings: reports(r.Findings)}
}

type LevelReport struct {
	Level      types.CompatibilityLevel `json:"level" yaml:"level"`
	Checked    int                      `json:"checked" yaml:"checked"`
	Compatible bool                     `json:"compatible" yaml:"compatible"`
	Findings   []compat.Report          `json:"findings" yaml:"findings"`
}

func reports(findings []compat.Finding) []compat.Report {
	out := make([]compat.Report, len(findings))
	for i, f := range findings {
		out[i] = f.Report()
	}
	return out
}

const checkObject = `{
	"type": "object",
	"required": ["writer", "reader"],
	"properties": {
		"id": {"type": "string"},
		"writer": {"type": "string", "minLength": 1},
		"reader": {"type": "string", "minLength": 1},
		"mutual": {"type": "boolean"},
		"short_circuit": {"type": "boolean"}
	},
	"additionalProperties": false
}`

const batchObject = `{
	"type": "object",
	"required": ["checks"],
	"properties": {
		"checks": {"type": "array", "minItems": 1, "items": ` + checkObject + `}
	},
	"additionalProperties": false
}`

const levelObject = `{
	"type": "object",
	"required": ["schema", "level"],
	"properties": {
		"schema": {"type": "string", "minLength": 1},
		"previous": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"level": {"type": "string", "minLength": 1},
		"short_circuit": {"type": "boolean"}
	},
	"additionalProperties": false
}`

var (
	checkEnvelope = jsonschema.MustCompileString("check.json", checkObject)
	batchEnvelope = jsonschema.MustCompileString("batch.json", batchObject)
	levelEnvelope = jsonschema.MustCompileString("level.json", levelObject)
)

func DecodeCheckRequest(data []byte) (CheckRequest, error) {
	var req CheckRequest
	err := decode(checkEnvelope, data, &req)
	return req, err
}

func DecodeBatchRequest(data []byte) (BatchRequest, error) {
	var req BatchRequest
	err := decode(batchEnvelope, data, &req)
	return req, err
}

func DecodeLevelRequest(data []byte) (LevelRequest, error) {
	var req LevelRequest
	err := decode(levelEnvelope, data, &req)
	return req, err
}

// decode validates data against envelope before binding it to out
func decode(envelope *jsonschema.Schema, data []byte, out any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("request body is not valid JSON").
			WithCause(err)
	}
	if err := envelope.Validate(doc); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed request").
			WithCause(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed request").
			WithCause(err)
	}
	return nil
}

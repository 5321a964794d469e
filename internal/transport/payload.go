package transport

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"transportagent/internal/model"
)

// Request is the body of POST request_data
type Request struct {
	RequestDescription string            `json:"request_description"`
	RequestorCode      string            `json:"requestor_code"`
	ProgramCode        string            `json:"program_code"`
	InterfaceCode      string            `json:"interface_code"`
	ResponseFormatCode string            `json:"response_format_code"`
	RequestDataItems   []RequestDataItem `json:"request_data_items"`
	RequestOptions     []RequestOption   `json:"request_options"`
	RequestFields      []string          `json:"request_fields"`
}

// RequestDataItem is one security query with its correlation tag
type RequestDataItem struct {
	BbgQuery string `json:"bbg_query"`
	Tag      string `json:"tag"`
}

// RequestOption is a name/value request header option
type RequestOption struct {
	OptionName  string `json:"option_name"`
	OptionValue string `json:"option_value"`
}

// RequestID is the vendor-assigned identifier. The vendor sends it either as a
// JSON string or a JSON number.
type RequestID string

// UnmarshalJSON accepts both string and numeric ids
func (id *RequestID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RequestID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("request id: %w", err)
	}
	*id = RequestID(n.String())
	return nil
}

// FileInfo describes one file of a vendor response
type FileInfo struct {
	ErrorText       string `json:"error_text"`
	IsErrorResponse bool   `json:"is_error_response"`
}

// Response is the envelope returned by every transport endpoint
type Response struct {
	RequestID     RequestID          `json:"request_id"`
	RequestStatus model.VendorStatus `json:"request_status"`
	IsError       bool               `json:"is_error"`
	DataFilePath  string             `json:"data_file_path"`
	FileInfo      []FileInfo         `json:"response_file_info"`
	Data          []map[string]any   `json:"data"`
}

func (r *Response) empty() bool {
	return r == nil || (r.RequestID == "" && r.RequestStatus == "" && len(r.Data) == 0)
}

// errorText joins the error texts of the error response files
func (r *Response) errorText() string {
	var texts []string
	for _, info := range r.FileInfo {
		if info.IsErrorResponse && info.ErrorText != "" {
			texts = append(texts, info.ErrorText)
		}
	}
	return strings.Join(texts, "\n")
}

// Rows converts the payload data into response rows with string cells
func (r *Response) Rows() []model.ResponseRow {
	rows := make([]model.ResponseRow, 0, len(r.Data))
	for _, raw := range r.Data {
		row := make(model.ResponseRow, len(raw))
		for col, v := range raw {
			row[strings.ToUpper(strings.TrimSpace(col))] = cellString(v)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// vendorMessage extracts the human-readable part of an error body
func vendorMessage(body string) string {
	var payload struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		if payload.Msg != "" {
			return payload.Msg
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

func gzipJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}
	return buf.Bytes(), nil
}

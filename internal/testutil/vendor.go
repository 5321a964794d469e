package testutil

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"transportagent/internal/transport"
)

// FakeVendor is an in-process batch transport. Requests finish after
// PollsUntilDone status checks and answer one row per data item.
type FakeVendor struct {
	Server *httptest.Server

	// PollsUntilDone is the number of PENDING answers before SUCCESS
	PollsUntilDone int
	// Row builds the response row of one data item; DefaultRow when nil
	Row func(item transport.RequestDataItem, fields []string) map[string]any
	// Files, when set, receives a data file for each finished request
	Files afero.Fs
	// DataDir is where data files are written and reported
	DataDir string
	// FileDate is the date part of data file names
	FileDate string

	mu           sync.Mutex
	nextID       int
	requests     map[string]*fakeRequest
	submitStatus int
	finishWith   string
}

type fakeRequest struct {
	req   transport.Request
	polls int
	gzip  bool
}

// NewFakeVendor starts a fake vendor; it is closed when the test ends
func NewFakeVendor(t interface{ Cleanup(func()) }) *FakeVendor {
	gin.SetMode(gin.TestMode)

	v := &FakeVendor{
		DataDir:  "/vendor/out",
		FileDate: "20240102",
		nextID:   9000,
		requests: make(map[string]*fakeRequest),
	}

	r := gin.New()
	r.POST("/request_data", v.handleSubmit)
	r.GET("/check_status/:id", v.handleStatus)
	r.GET("/response/:id", v.handleResponse)

	v.Server = httptest.NewServer(r)
	t.Cleanup(v.Server.Close)
	return v
}

// URL is the base URL of the fake vendor
func (v *FakeVendor) URL() string {
	return v.Server.URL
}

// Submitted returns the requests received so far, in arrival order
func (v *FakeVendor) Submitted() []transport.Request {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]transport.Request, 0, len(v.requests))
	for id := 9001; id <= v.nextID; id++ {
		if fr, ok := v.requests[strconv.Itoa(id)]; ok {
			out = append(out, fr.req)
		}
	}
	return out
}

// RejectSubmissions makes request_data answer with status; zero accepts again
func (v *FakeVendor) RejectSubmissions(status int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitStatus = status
}

// FinishWith replaces SUCCESS as the terminal request status, e.g. BBGERROR
func (v *FakeVendor) FinishWith(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finishWith = status
}

// Compressed reports whether every request so far arrived gzipped
func (v *FakeVendor) Compressed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, fr := range v.requests {
		if !fr.gzip {
			return false
		}
	}
	return len(v.requests) > 0
}

// Forget drops a request id so later calls get a 404
func (v *FakeVendor) Forget(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.requests, id)
}

// DefaultRow answers every field with a value and echoes the yellow key
func DefaultRow(item transport.RequestDataItem, fields []string) map[string]any {
	row := map[string]any{
		"REQUESTOR_TAG":     "##" + item.Tag + "##",
		"ROW_STATUS":        0,
		"MARKET_SECTOR_DES": YellowKey(item.BbgQuery),
	}
	for _, f := range fields {
		if _, ok := row[f]; !ok {
			row[f] = 101.5
		}
	}
	return row
}

// YellowKey extracts the yellow key from a security query
func YellowKey(query string) string {
	security := strings.SplitN(query, "|", 2)[0]
	parts := strings.Fields(security)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func (v *FakeVendor) handleSubmit(c *gin.Context) {
	v.mu.Lock()
	reject := v.submitStatus
	v.mu.Unlock()
	if reject != 0 {
		c.JSON(reject, gin.H{"msg": "rejected by fake vendor"})
		return
	}

	var body io.Reader = c.Request.Body
	compressed := c.GetHeader("Content-Encoding") == "gzip"
	if compressed {
		zr, err := gzip.NewReader(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}
		defer zr.Close()
		body = zr
	}

	var req transport.Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.requests[strconv.Itoa(id)] = &fakeRequest{req: req, gzip: compressed}
	v.mu.Unlock()

	// numeric ids, as the real transport sends them
	c.JSON(http.StatusOK, gin.H{"request_id": id, "request_status": "INITIAL"})
}

func (v *FakeVendor) handleStatus(c *gin.Context) {
	id := c.Param("id")

	v.mu.Lock()
	fr, ok := v.requests[id]
	status := "PENDING"
	if ok {
		fr.polls++
		if fr.polls > v.PollsUntilDone {
			status = v.finalStatus()
		}
	}
	v.mu.Unlock()

	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	resp := gin.H{"request_id": id, "request_status": status}
	if strings.Contains(status, "ERROR") {
		resp["is_error"] = true
		resp["response_file_info"] = []gin.H{{"error_text": "request rejected upstream", "is_error_response": true}}
	}
	c.JSON(http.StatusOK, resp)
}

func (v *FakeVendor) handleResponse(c *gin.Context) {
	id := c.Param("id")

	v.mu.Lock()
	fr, ok := v.requests[id]
	status := v.finalStatus()
	v.mu.Unlock()
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	rowFn := v.Row
	if rowFn == nil {
		rowFn = DefaultRow
	}
	rows := make([]map[string]any, 0, len(fr.req.RequestDataItems))
	for _, item := range fr.req.RequestDataItems {
		if row := rowFn(item, fr.req.RequestFields); row != nil {
			rows = append(rows, row)
		}
	}

	path := fmt.Sprintf("%s/%s.%s.csv", v.DataDir, v.FileDate, id)
	if v.Files != nil {
		if err := v.writeDataFile(path, rows); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":     id,
		"request_status": status,
		"data_file_path": path,
		"data":           rows,
	})
}

// finalStatus must be called with v.mu held
func (v *FakeVendor) finalStatus() string {
	if v.finishWith != "" {
		return v.finishWith
	}
	return "SUCCESS"
}

func (v *FakeVendor) writeDataFile(path string, rows []map[string]any) error {
	if err := v.Files.MkdirAll(v.DataDir, 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%v,%v\n", row["REQUESTOR_TAG"], row["ROW_STATUS"])
	}
	return afero.WriteFile(v.Files, path, []byte(b.String()), 0o644)
}

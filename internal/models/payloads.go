package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RFQInput is the request body posted for one RFQ row.
type RFQInput struct {
	RowID                   string
	Title                   string
	Industry                string
	Geography               string
	Standard                string
	CustomerName            string
	ProductJSON             string
	ExtractedAttachmentText string
	Products                []Product
}

type rfqInputWire struct {
	RowID                   string          `json:"rowID"`
	RowIDSnake              string          `json:"row_id"`
	Title                   string          `json:"Title"`
	Industry                string          `json:"Industry"`
	Geography               string          `json:"Geography"`
	Standard                string          `json:"Standard"`
	CustomerName            string          `json:"Customer name"`
	ProductJSON             json.RawMessage `json:"Product_json"`
	ExtractedAttachmentText string          `json:"Extracted Attachment Text"`
}

func (in *RFQInput) UnmarshalJSON(b []byte) error {
	var w rfqInputWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*in = RFQInput{
		RowID:                   strings.TrimSpace(w.RowID),
		Title:                   w.Title,
		Industry:                w.Industry,
		Geography:               w.Geography,
		Standard:                w.Standard,
		CustomerName:            w.CustomerName,
		ExtractedAttachmentText: w.ExtractedAttachmentText,
	}
	if in.RowID == "" {
		in.RowID = strings.TrimSpace(w.RowIDSnake)
	}

	// Product_json normally arrives as a string holding JSON, but callers
	// sometimes post the object itself.
	raw := bytes.TrimSpace(w.ProductJSON)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			in.ProductJSON = s
		}
	} else if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		in.ProductJSON = string(raw)
	}
	in.Products = ParseProducts(in.ProductJSON)
	return nil
}

func (in RFQInput) MarshalJSON() ([]byte, error) {
	m := in.Header()
	if in.ExtractedAttachmentText != "" {
		m["Extracted Attachment Text"] = in.ExtractedAttachmentText
	}
	return json.Marshal(m)
}

// Header is the RFQ record as it is shown to the model and written to logs.
func (in RFQInput) Header() map[string]string {
	return map[string]string{
		"rowID":         in.RowID,
		"Title":         in.Title,
		"Industry":      in.Industry,
		"Geography":     in.Geography,
		"Standard":      in.Standard,
		"Customer name": in.CustomerName,
		"Product_json":  in.ProductJSON,
	}
}

// FirstProduct returns the first parsed product or a zero Product.
func (in RFQInput) FirstProduct() Product {
	if len(in.Products) == 0 {
		return Product{}
	}
	return in.Products[0]
}

// AttachmentURLs lists every product's dwg, photo and files URLs, cleaned
// and deduplicated across products.
func (in RFQInput) AttachmentURLs() []string {
	var urls []string
	for _, p := range in.Products {
		urls = append(urls, p.AttachmentURLs()...)
	}
	return CleanURLs(urls)
}

// Product is one line item of Product_json.
type Product struct {
	SrNo    *int     `json:"sr_no,omitempty"`
	Name    string   `json:"Name"`
	Qty     string   `json:"Qty"`
	Details string   `json:"Details"`
	Dwg     string   `json:"Dwg,omitempty"`
	Photo   []string `json:"photo,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// AttachmentURLs returns dwg, then photos, then files, cleaned and deduplicated.
func (p Product) AttachmentURLs() []string {
	var urls []string
	if p.Dwg != "" {
		urls = append(urls, p.Dwg)
	}
	urls = append(urls, p.Photo...)
	urls = append(urls, p.Files...)
	return CleanURLs(urls)
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	pick := func(keys ...string) json.RawMessage {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				return v
			}
		}
		return nil
	}
	*p = Product{
		Name:    flexString(pick("Name", "name")),
		Qty:     flexString(pick("Qty", "qty")),
		Details: flexString(pick("Details", "details")),
		Dwg:     flexString(pick("Dwg", "dwg")),
		Photo:   flexStrings(pick("photo", "Photo")),
		Files:   flexStrings(pick("files", "Files")),
	}
	if v := pick("sr_no"); v != nil {
		if n, err := strconv.Atoi(flexString(v)); err == nil {
			p.SrNo = &n
		}
	}
	return nil
}

// ParseProducts accepts a single object, a list, or a bare "{...}, {...}"
// sequence. Anything it cannot repair yields no products.
func ParseProducts(raw string) []Product {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if products, ok := decodeProducts(s); ok {
		return products
	}

	compact := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.TrimRight(s, ", \t\r\n")))
	noSpace := strings.ReplaceAll(compact, " ", "")
	if strings.HasPrefix(compact, "{") && (strings.HasSuffix(compact, "}") && strings.Contains(noSpace, "},{") || strings.Contains(compact, "}, {")) {
		if products, ok := decodeProducts("[" + compact + "]"); ok {
			return products
		}
	}
	return nil
}

func decodeProducts(s string) ([]Product, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	var items []json.RawMessage
	switch v.(type) {
	case map[string]any:
		items = []json.RawMessage{json.RawMessage(s)}
	case []any:
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	var out []Product
	for _, it := range items {
		if t := bytes.TrimSpace(it); len(t) == 0 || t[0] != '{' {
			continue
		}
		var p Product
		if err := json.Unmarshal(it, &p); err == nil {
			out = append(out, p)
		}
	}
	return out, true
}

func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

func flexStrings(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		if s := flexString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, it := range list {
		if s := flexString(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SubmitResponse is returned by the intake endpoints.
type SubmitResponse struct {
	OK     bool      `json:"ok"`
	Status JobStatus `json:"status"`
	RunID  string    `json:"run_id,omitempty"`
	Mode   Mode      `json:"mode"`
	Error  string    `json:"error,omitempty"`
}

// SubmitEvent is the CloudEvent data accepted by the event entry point.
type SubmitEvent struct {
	Mode    string   `json:"mode"`
	Payload RFQInput `json:"payload"`
}

// RunOutput is the full record of one completed job.
type RunOutput struct {
	RunID          string              `json:"run_id"`
	Mode           Mode                `json:"mode"`
	RowID          string              `json:"row_id"`
	RFQTitle       string              `json:"rfq_title"`
	CustomerName   string              `json:"customer_name"`
	Standard       string              `json:"standard"`
	Geography      string              `json:"geography"`
	Industry       string              `json:"industry"`
	ProductName    string              `json:"product_name"`
	ProductQty     string              `json:"product_qty"`
	ProductDetails string              `json:"product_details"`
	Findings       []AttachmentFinding `json:"attachment_findings"`
	WebFindings    []WebFinding        `json:"web_findings"`
	ExtractedText  string              `json:"extracted_text"`
	Sections       map[string]string   `json:"sections"`
	RawModelOutput string              `json:"raw_model_output"`
	Timings        map[string]float64  `json:"timings"`
	CompletedAt    time.Time           `json:"completed_at"`
}

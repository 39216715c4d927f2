package report

import (
	"encoding/json"

	"github.com/exploopio/waflens/pkg/compress"
	"github.com/exploopio/waflens/pkg/metrics"
)

// Writer persists payloads to files. Every format funnels through here
// so produced artifacts are counted in one place.
type Writer struct {
	collector metrics.Collector
}

// NewWriter creates a report writer.
func NewWriter(collector metrics.Collector) *Writer {
	if collector == nil {
		collector = &metrics.NopCollector{}
	}
	return &Writer{collector: collector}
}

// WriteJSON writes the payload as indented JSON. A .gz or .zst path
// suffix compresses the artifact transparently.
func (w *Writer) WriteJSON(path string, p *Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := compress.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	w.collector.CounterInc(metrics.ReportsGeneratedTotal.Name, "format", "json")
	return nil
}

// WriteHTML writes the payload as a self-contained HTML page.
func (w *Writer) WriteHTML(path string, p *Payload) error {
	data, err := renderHTML(p)
	if err != nil {
		return err
	}
	if err := compress.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	w.collector.CounterInc(metrics.ReportsGeneratedTotal.Name, "format", "html")
	return nil
}

// WritePDF writes the payload as a PDF document.
func (w *Writer) WritePDF(path string, p *Payload) error {
	if err := renderPDF(path, p); err != nil {
		return err
	}
	w.collector.CounterInc(metrics.ReportsGeneratedTotal.Name, "format", "pdf")
	return nil
}

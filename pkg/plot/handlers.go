package plot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/raykavin/kagiline/pkg/exchange"
)

func (c *Chart) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	lastUpdate := c.lastUpdate
	c.Unlock()

	if c.staleAfter > 0 && time.Since(lastUpdate) > c.staleAfter {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(lastUpdate.Format(time.RFC3339))); err != nil {
			c.log.WithError(err).Error("failed to write health status")
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *Chart) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	pairs := c.Pairs()
	pair := r.URL.Query().Get("pair")
	if pair == "" && len(pairs) > 0 {
		http.Redirect(w, r, fmt.Sprintf("/?pair=%s", pairs[0]), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	err := c.indexHTML.Execute(w, map[string]any{
		"pair":  pair,
		"pairs": pairs,
	})
	if err != nil {
		c.log.WithError(err).Error("template execution failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (c *Chart) handleData(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	data := c.data(pair)
	data.Asset, data.Quote = exchange.SplitAssetQuote(pair)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.log.WithError(err).Error("json encoding failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleHistory exports the drawn lines of a pair as CSV
func (c *Chart) handleHistory(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	buffer := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buffer)
	_ = writer.Write([]string{"start", "end", "from", "to", "style"})
	for _, shape := range c.data(pair).Shapes {
		_ = writer.Write([]string{
			shape.StartX.Format(time.RFC3339),
			shape.EndX.Format(time.RFC3339),
			strconv.FormatFloat(shape.StartY, 'f', -1, 64),
			strconv.FormatFloat(shape.EndY, 'f', -1, 64),
			shape.Name,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		c.log.WithError(err).Error("failed writing csv")
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=kagi_"+pair+".csv")
	if _, err := w.Write(buffer.Bytes()); err != nil {
		c.log.WithError(err).Error("failed writing csv response")
	}
}

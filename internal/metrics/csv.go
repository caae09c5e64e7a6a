package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// csvHeader maps lowercased, trimmed column names to their index.
type csvHeader map[string]int

func readCSV(path string) (csvHeader, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "metrics: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	return parseCSV(f)
}

func parseCSV(r io.Reader) (csvHeader, [][]string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "metrics: read csv")
	}
	if len(records) < 2 {
		return nil, nil, nil // header only or empty
	}

	header := make(csvHeader, len(records[0]))
	for i, h := range records[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return header, records[1:], nil
}

func (h csvHeader) str(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h csvHeader) float(row []string, col string) (float64, error) {
	s := h.str(row, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, eris.Wrapf(err, "metrics: parse %s %q", col, s)
}

func (h csvHeader) int(row []string, col string) (int, error) {
	s := h.str(row, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	return v, eris.Wrapf(err, "metrics: parse %s %q", col, s)
}

func (h csvHeader) bool(row []string, col string) bool {
	switch strings.ToLower(h.str(row, col)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func (h csvHeader) date(row []string, col string) (time.Time, error) {
	s := h.str(row, col)
	t, err := time.Parse(dateLayout, s)
	return t, eris.Wrapf(err, "metrics: parse %s %q", col, s)
}

// ReadSearchCSV parses a search rollup export. Expected columns: date, page,
// query (optional), clicks, impressions, ctr, position.
func ReadSearchCSV(path string) ([]SearchDaily, error) {
	header, rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, err
	}
	if _, ok := header["date"]; !ok {
		return nil, eris.New("metrics: search csv missing date column")
	}
	if _, ok := header["page"]; !ok {
		return nil, eris.New("metrics: search csv missing page column")
	}

	out := make([]SearchDaily, 0, len(rows))
	for _, row := range rows {
		var r SearchDaily
		if r.Date, err = header.date(row, "date"); err != nil {
			return nil, err
		}
		r.Page = header.str(row, "page")
		r.Query = header.str(row, "query")
		if r.Clicks, err = header.float(row, "clicks"); err != nil {
			return nil, err
		}
		if r.Impressions, err = header.float(row, "impressions"); err != nil {
			return nil, err
		}
		if r.CTR, err = header.float(row, "ctr"); err != nil {
			return nil, err
		}
		if r.Position, err = header.float(row, "position"); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadAnalyticsCSV parses an analytics rollup export. Expected columns: date,
// landing_page, sessions, users, engaged_sessions, conversions.
func ReadAnalyticsCSV(path string) ([]AnalyticsDaily, error) {
	header, rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, err
	}
	if _, ok := header["date"]; !ok {
		return nil, eris.New("metrics: analytics csv missing date column")
	}
	if _, ok := header["landing_page"]; !ok {
		return nil, eris.New("metrics: analytics csv missing landing_page column")
	}

	out := make([]AnalyticsDaily, 0, len(rows))
	for _, row := range rows {
		var r AnalyticsDaily
		if r.Date, err = header.date(row, "date"); err != nil {
			return nil, err
		}
		r.LandingPage = header.str(row, "landing_page")
		if r.Sessions, err = header.float(row, "sessions"); err != nil {
			return nil, err
		}
		if r.Users, err = header.float(row, "users"); err != nil {
			return nil, err
		}
		if r.EngagedSessions, err = header.float(row, "engaged_sessions"); err != nil {
			return nil, err
		}
		if r.Conversions, err = header.float(row, "conversions"); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadPageChecksCSV parses a page check export. Expected columns: url, date,
// http_status, redirect_target, canonical, meta_robots, robots_disallowed,
// has_analytics_tag, has_structured_data, internal_links, text_length.
func ReadPageChecksCSV(path string) ([]PageCheck, error) {
	header, rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, err
	}
	if _, ok := header["date"]; !ok {
		return nil, eris.New("metrics: page check csv missing date column")
	}
	if _, ok := header["url"]; !ok {
		return nil, eris.New("metrics: page check csv missing url column")
	}

	out := make([]PageCheck, 0, len(rows))
	for _, row := range rows {
		var r PageCheck
		if r.Date, err = header.date(row, "date"); err != nil {
			return nil, err
		}
		r.URL = header.str(row, "url")
		if r.HTTPStatus, err = header.int(row, "http_status"); err != nil {
			return nil, err
		}
		r.RedirectTarget = header.str(row, "redirect_target")
		r.Canonical = header.str(row, "canonical")
		r.MetaRobots = header.str(row, "meta_robots")
		r.RobotsDisallowed = header.bool(row, "robots_disallowed")
		r.HasAnalyticsTag = header.bool(row, "has_analytics_tag")
		r.HasStructuredData = header.bool(row, "has_structured_data")
		if r.InternalLinks, err = header.int(row, "internal_links"); err != nil {
			return nil, err
		}
		if r.TextLength, err = header.int(row, "text_length"); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

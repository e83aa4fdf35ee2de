package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

// Siren is one warning siren station with its current status.
type Siren struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Basin       string  `json:"basin,omitempty"`
	Online      bool    `json:"online"`
	Status      string  `json:"status"`
	StatusLabel string  `json:"status_label"`
}

// SirenSummary aggregates station counts by status.
type SirenSummary struct {
	Total     int `json:"total_sirens"`
	Online    int `json:"online_sirens"`
	Active    int `json:"active_sirens"`
	Triggered int `json:"triggered_sirens"`
	Inactive  int `json:"inactive_sirens"`
}

const (
	sirenStatusInactive  = "inactive"
	sirenStatusActive    = "active"
	sirenStatusTriggered = "triggered"
	sirenStatusUnknown   = "unknown"
)

// sirenProvider fetches the city siren feed, which is XML, and converts it to
// the JSON payload the data endpoints serve.
type sirenProvider struct {
	name   string
	url    string
	client *http.Client
}

func newSirenProvider(url string, timeout time.Duration) *sirenProvider {
	return &sirenProvider{
		name:   "sirens",
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *sirenProvider) Name() string { return p.name }

func (p *sirenProvider) Fetch(ctx context.Context) ([]byte, error) {
	if p.url == "" {
		return nil, fmt.Errorf("%s provider not configured: %w", p.name, apperr.ErrSourceUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", p.name, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", p.name, err)
	}
	return parseSirens(raw)
}

type sirenStationXML struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"nome,attr"`
	Location struct {
		Latitude  string `xml:"latitude,attr"`
		Longitude string `xml:"longitude,attr"`
		Basin     string `xml:"bacia,attr"`
	} `xml:"localizacao"`
	State struct {
		Online string `xml:"online,attr"`
		Status string `xml:"status,attr"`
	} `xml:"status"`
}

type sirenFeedXML struct {
	Stations []sirenStationXML `xml:"estacao"`
}

// parseSirens converts the upstream XML into the JSON payload, tallying a
// summary by status along the way.
func parseSirens(raw []byte) ([]byte, error) {
	var feed sirenFeedXML
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("sirens parse: %w", err)
	}

	sirens := make([]Siren, 0, len(feed.Stations))
	var summary SirenSummary
	for _, st := range feed.Stations {
		status, label := sirenStatus(st.State.Status)
		s := Siren{
			ID:          st.ID,
			Name:        st.Name,
			Latitude:    parseCoordinate(st.Location.Latitude),
			Longitude:   parseCoordinate(st.Location.Longitude),
			Online:      strings.EqualFold(st.State.Online, "true"),
			Status:      status,
			StatusLabel: label,
		}
		// The feed uses "-" for stations outside any hydrographic basin.
		if st.Location.Basin != "" && st.Location.Basin != "-" {
			s.Basin = st.Location.Basin
		}
		sirens = append(sirens, s)

		summary.Total++
		if s.Online {
			summary.Online++
		}
		switch status {
		case sirenStatusTriggered:
			summary.Triggered++
		case sirenStatusActive:
			summary.Active++
		case sirenStatusInactive:
			summary.Inactive++
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"sirens":  sirens,
		"summary": summary,
	})
	if err != nil {
		return nil, fmt.Errorf("sirens encode: %w", err)
	}
	return payload, nil
}

// sirenStatus maps the feed's status codes to a status plus the label the
// city publishes.
func sirenStatus(code string) (string, string) {
	switch strings.ToLower(code) {
	case "ds":
		return sirenStatusInactive, "Desativada"
	case "at":
		return sirenStatusActive, "Ativa"
	case "ac":
		return sirenStatusTriggered, "Acionada"
	default:
		return sirenStatusUnknown, "Desconhecido"
	}
}

// parseCoordinate tolerates the feed's comma decimal separator.
func parseCoordinate(v string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

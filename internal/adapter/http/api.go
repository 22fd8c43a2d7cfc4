package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

const (
	maxUploadBytes = 32 << 20
	maxFormMemory  = 8 << 20
)

type tableResponse struct {
	Source      string              `json:"source"`
	Count       int                 `json:"count"`
	DateMin     string              `json:"date_min,omitempty"`
	DateMax     string              `json:"date_max,omitempty"`
	Submissions []domain.Submission `json:"submissions"`
}

type areaResponse struct {
	Center      domain.Point        `json:"center"`
	RadiusKm    float64             `json:"radius_km"`
	Count       int                 `json:"count"`
	Submissions []domain.Submission `json:"submissions"`
}

type timeseriesResponse struct {
	Granularity domain.Granularity `json:"granularity"`
	Center      domain.Point       `json:"center"`
	RadiusKm    float64            `json:"radius_km"`
	Buckets     []domain.Bucket    `json:"buckets"`
}

// handleTable serves the filtered table. date_min and date_max describe the
// whole store so clients can bound their date pickers.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	table, err := s.catalog.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := q.Apply(table)
	resp := tableResponse{Source: s.catalog.Source(), Count: len(rows), Submissions: rows}
	if first, last, ok := domain.Span(table); ok {
		resp.DateMin = first.Format(dateLayout)
		resp.DateMax = last.Format(dateLayout)
	}
	s.metrics.QueryRows.WithLabelValues("table").Observe(float64(len(rows)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n, err := parseRecentN(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	table, err := s.catalog.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := domain.Recent(table, n)
	s.metrics.QueryRows.WithLabelValues("recent").Observe(float64(len(rows)))
	writeJSON(w, http.StatusOK, tableResponse{Source: s.catalog.Source(), Count: len(rows), Submissions: rows})
}

func (s *Server) handleArea(w http.ResponseWriter, r *http.Request) {
	area, rows, ok := s.areaRows(w, r)
	if !ok {
		return
	}
	s.metrics.QueryRows.WithLabelValues("area").Observe(float64(len(rows)))
	writeJSON(w, http.StatusOK, areaResponse{
		Center:      area.Center,
		RadiusKm:    area.RadiusKm,
		Count:       len(rows),
		Submissions: rows,
	})
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	g := domain.Day
	if v := r.URL.Query().Get("granularity"); v != "" {
		parsed, err := domain.ParseGranularity(v)
		if err != nil {
			s.writeError(w, r, &paramError{"granularity", "must be day, week, or month"})
			return
		}
		g = parsed
	}

	area, rows, ok := s.areaRows(w, r)
	if !ok {
		return
	}
	buckets := slices.Collect(domain.Timeseries(rows, g))
	if buckets == nil {
		buckets = []domain.Bucket{}
	}
	s.metrics.QueryRows.WithLabelValues("timeseries").Observe(float64(len(buckets)))
	writeJSON(w, http.StatusOK, timeseriesResponse{
		Granularity: g,
		Center:      area.Center,
		RadiusKm:    area.RadiusKm,
		Buckets:     buckets,
	})
}

// areaRows runs the full filter pipeline: attribute and date stages first,
// then the radius stage around the requested or default center.
func (s *Server) areaRows(w http.ResponseWriter, r *http.Request) (domain.Area, []domain.Submission, bool) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return domain.Area{}, nil, false
	}
	table, err := s.catalog.FilteredTable(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return domain.Area{}, nil, false
	}
	area, err := parseArea(r.URL.Query(), table)
	if err != nil {
		s.writeError(w, r, err)
		return domain.Area{}, nil, false
	}
	return area, area.Apply(table), true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	in, err := decodeSubmission(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return
		}
		s.writeError(w, r, err)
		return
	}

	sub, err := s.writer.Submit(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// decodeSubmission accepts either a JSON body or a multipart form whose
// optional "photo" part carries the image.
func decodeSubmission(r *http.Request) (domain.SubmissionInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipart(r)
	}

	var in domain.SubmissionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, err
		}
		return in, &paramError{"body", "must be a JSON submission"}
	}
	return in, nil
}

func decodeMultipart(r *http.Request) (domain.SubmissionInput, error) {
	var in domain.SubmissionInput
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, err
		}
		return in, &paramError{"body", "must be a multipart form"}
	}

	fields := map[string]string{}
	// Blank coordinates stay nil so validation reports them as missing.
	number := func(key string) *float64 {
		s := strings.TrimSpace(r.FormValue(key))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			fields[key] = "must be a number"
			return nil
		}
		return &f
	}
	in.Latitude = number("latitude")
	in.Longitude = number("longitude")
	if s := strings.TrimSpace(r.FormValue("brightness_rating")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fields["brightness_rating"] = "must be between 1 and 5"
		}
		in.BrightnessRating = n
	}
	if len(fields) > 0 {
		return in, &domain.ValidationError{Fields: fields}
	}

	in.PhotoURL = strings.TrimSpace(r.FormValue("photo_url"))
	for _, v := range r.MultipartForm.Value["constellation_names"] {
		for name := range strings.SplitSeq(v, ",") {
			in.ConstellationNames = append(in.ConstellationNames, strings.TrimSpace(name))
		}
	}

	file, header, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return in, fmt.Errorf("%w: read photo part: %w", errBadRequest, err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return in, fmt.Errorf("%w: read photo part: %w", errBadRequest, err)
	}
	in.Photo = &domain.Photo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return in, nil
}

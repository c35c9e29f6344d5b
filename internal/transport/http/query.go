package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/form/v4"
	"github.com/samber/lo"

	apierrors "pharmapulse/internal/errors"
	"pharmapulse/internal/middleware"
	"pharmapulse/pkg/contracts/domain"
)

// filterQuery selects the fact rows a query runs over.
type filterQuery struct {
	Region   string `query:"region" validate:"omitempty,max=128"`
	District string `query:"district" validate:"omitempty,max=128"`
	Team     string `query:"team" validate:"omitempty,max=64"`
	Source   string `query:"source" validate:"omitempty,max=128"`
}

func (q filterQuery) toFilter() domain.FactFilter {
	return domain.FactFilter{
		Region:   q.Region,
		District: q.District,
		Team:     q.Team,
		Source:   q.Source,
	}
}

// periodQuery names the compared periods. Both may be omitted.
type periodQuery struct {
	Ref  string `query:"ref" validate:"omitempty,period"`
	Base string `query:"base" validate:"omitempty,period"`
}

type factsQuery struct {
	filterQuery
	Period string `query:"period" validate:"omitempty,period"`
	Limit  int    `query:"limit" validate:"gte=0"`
	Format string `query:"format" validate:"omitempty,oneof=json csv"`
}

type leaderboardQuery struct {
	filterQuery
	periodQuery
	Entities  []string `query:"entity" validate:"dive,required"`
	Direction string   `query:"direction" validate:"omitempty,oneof=gain drop"`
	Mode      string   `query:"mode" validate:"omitempty,oneof=pct delta"`
	TopN      int      `query:"top" validate:"gte=0,lte=500"`
	Format    string   `query:"format" validate:"omitempty,oneof=json csv"`
}

type marketShareQuery struct {
	filterQuery
	Entity string `query:"entity" validate:"required"`
	Period string `query:"period" validate:"omitempty,period"`
}

type evolutionQuery struct {
	filterQuery
	periodQuery
	Entity string `query:"entity" validate:"required"`
}

type portfolioQuery struct {
	filterQuery
	periodQuery
	Entities []string `query:"entity" validate:"dive,required"`
	Format   string   `query:"format" validate:"omitempty,oneof=json csv"`
}

type churnQuery struct {
	filterQuery
	periodQuery
	TopN   int    `query:"top" validate:"gte=0,lte=500"`
	Format string `query:"format" validate:"omitempty,oneof=json csv"`
}

var queryFormDecoder = newQueryFormDecoder()

func newQueryFormDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("query")
	return d
}

// bindQuery decodes url query values into the query-tagged fields of dst.
// Fields of embedded structs bind at the top level. Values are trimmed and
// blank ones dropped, so a slice takes every non-blank repeated value.
func bindQuery(values url.Values, dst interface{}) error {
	cleaned := make(url.Values, len(values))
	for key, raw := range values {
		for _, item := range raw {
			if item = strings.TrimSpace(item); item != "" {
				cleaned[key] = append(cleaned[key], item)
			}
		}
	}

	err := queryFormDecoder.Decode(dst, cleaned)
	var decodeErrs form.DecodeErrors
	if errors.As(err, &decodeErrs) {
		fields := lo.Keys(decodeErrs)
		sort.Strings(fields)
		details := lo.Map(fields, func(field string, _ int) apierrors.ValidationError {
			return apierrors.ValidationError{Field: field, Message: fmt.Sprintf("invalid value for %s", field)}
		})
		return apierrors.NewValidationErrors(details)
	}
	return err
}

// dataResponse is the success envelope of every JSON endpoint.
type dataResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Count  *int        `json:"count,omitempty"`
}

func respondData(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, dataResponse{Status: "success", Data: data})
}

func respondList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	render.JSON(w, r, dataResponse{Status: "success", Data: data, Count: &count})
}

// csvFilename builds a download name such as leaderboard_Q2-2024_Q1-2024.csv.
func csvFilename(kind string, parts ...string) string {
	name := kind
	for _, p := range parts {
		if p != "" {
			name += "_" + strings.ReplaceAll(p, " ", "-")
		}
	}
	return name + ".csv"
}

func startCSV(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}

// queryDecoder binds and validates query structs, writing a problem
// response on failure.
type queryDecoder struct {
	validator    *middleware.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
}

func (d queryDecoder) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := bindQuery(r.URL.Query(), dst); err != nil {
		d.errorHandler.HandleError(w, r, err)
		return false
	}
	if err := d.validator.ValidateStruct(dst); err != nil {
		d.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

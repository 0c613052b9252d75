package search

import (
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/normalizer"
)

var validate = validator.New()

// Register registers search routes
func Register(g *echo.Group) {
	g.GET("", SearchSources)
}

type searchRequest struct {
	Query string `query:"q" validate:"required"`
	Incl  string `query:"incl"`
	Excl  string `query:"excl"`
}

// SearchSources answers a per-source disease query
func SearchSources(c echo.Context) error {
	ctx := c.Request().Context()

	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, "q query parameter is required")
	}

	sources, err := resolveSources(req.Incl, req.Excl)
	if err != nil {
		return err
	}

	ctx, svc, err := ectoinject.GetContext[*normalizer.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.Search(ctx, req.Query, sources)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// resolveSources maps incl/excl filters onto the source list. The
// filters are mutually exclusive.
func resolveSources(incl string, excl string) ([]models.SourceName, error) {
	if incl != "" && excl != "" {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "incl and excl cannot be used together")
	}

	if incl != "" {
		return parseSourceList(incl)
	}

	if excl != "" {
		excluded, err := parseSourceList(excl)
		if err != nil {
			return nil, err
		}
		skip := make(map[models.SourceName]struct{}, len(excluded))
		for _, source := range excluded {
			skip[source] = struct{}{}
		}
		var sources []models.SourceName
		for _, source := range models.AllSources() {
			if _, ok := skip[source]; !ok {
				sources = append(sources, source)
			}
		}
		return sources, nil
	}

	return nil, nil
}

func parseSourceList(raw string) ([]models.SourceName, error) {
	var sources []models.SourceName
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		source, ok := models.ParseSourceName(part)
		if !ok {
			return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "unknown source: "+part)
		}
		sources = append(sources, source)
	}
	return sources, nil
}

package normalize

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/vicc-go/disease-normalizer/pkg/normalizer"
)

// Register registers normalize routes
func Register(g *echo.Group) {
	g.GET("", NormalizeQuery)
}

// NormalizeQuery answers a corpus-wide disease query with the single
// best merged concept
func NormalizeQuery(c echo.Context) error {
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, "q query parameter is required")
	}

	ctx, svc, err := ectoinject.GetContext[*normalizer.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.Normalize(ctx, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

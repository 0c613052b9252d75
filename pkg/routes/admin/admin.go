package admin

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/normalizer"
)

// Register registers admin routes
func Register(g *echo.Group) {
	g.POST("/rebuild", RebuildMerges)
	g.POST("/sources/:source", LoadSource)
}

// LoadSource ingests an ontology export streamed in the request body,
// replacing the source's stored records
func LoadSource(c echo.Context) error {
	ctx := c.Request().Context()

	source, ok := models.ParseSourceName(c.Param("source"))
	if !ok {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("unknown source: %s", c.Param("source")))
	}

	ctx, svc, err := ectoinject.GetContext[*normalizer.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.LoadSource(ctx, source, c.Request().Body)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// RebuildMerges recomputes the merged record set from the stored
// source records
func RebuildMerges(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*normalizer.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.RebuildMerges(ctx)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"merge_groups":   result.MergeGroups,
			"merged_records": result.MergedRecords,
		}).Info("Rebuild triggered via API")
	}

	return c.JSON(http.StatusOK, result)
}

package record

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
)

// Register registers record lookup routes
func Register(g *echo.Group) {
	g.GET("/records/:conceptID", GetRecord)
	g.GET("/merged/:conceptID", GetMergedRecord)
	g.GET("/sources/:source", GetSourceMeta)
}

// GetRecord returns a single source record by concept ID
func GetRecord(c echo.Context) error {
	ctx := c.Request().Context()
	conceptID := c.Param("conceptID")

	ctx, store, err := ectoinject.GetContext[storage.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rec, err := store.GetSourceRecord(ctx, conceptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "record not found: "+conceptID)
		}
		return err
	}

	return c.JSON(http.StatusOK, rec)
}

// GetMergedRecord returns a merged record by its merge reference
func GetMergedRecord(c echo.Context) error {
	ctx := c.Request().Context()
	conceptID := c.Param("conceptID")

	ctx, store, err := ectoinject.GetContext[storage.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rec, err := store.GetMergedRecord(ctx, conceptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "merged record not found: "+conceptID)
		}
		return err
	}

	return c.JSON(http.StatusOK, rec)
}

// GetSourceMeta returns license and version metadata for a source
func GetSourceMeta(c echo.Context) error {
	ctx := c.Request().Context()

	source, ok := models.ParseSourceName(c.Param("source"))
	if !ok {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, "unknown source: "+c.Param("source"))
	}

	ctx, store, err := ectoinject.GetContext[storage.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	meta, err := store.GetSourceMeta(ctx, source)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "source not loaded: "+string(source))
		}
		return err
	}

	return c.JSON(http.StatusOK, meta)
}

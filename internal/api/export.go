package api

import (
	"errors"
	"log"
	"net/http"

	"pricetracker/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHistory streams a product's full price history as an XLSX workbook.
func (h *APIHandler) ExportHistory(c *gin.Context) {
	productURL := c.Query("url")
	if !isValidProductURL(productURL) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error", "details": "url must be a valid http(s) URL"})
		return
	}

	history, err := h.history.History(c.Request.Context(), productURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		log.Printf("ExportHistory: history error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Price History"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Timestamp", "Name", "Price", "Currency", "Available", "Image URL"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, obs := range history {
		values := []interface{}{
			obs.Timestamp.Format("2006-01-02 15:04:05"),
			obs.Name,
			obs.Price,
			obs.Currency,
			obs.IsAvailable,
			"",
		}
		if obs.MainImageURL != nil {
			values[5] = *obs.MainImageURL
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="price-history.xlsx"`)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("ExportHistory: write workbook: %v", err)
	}
}

package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seopilot/core/internal/models"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient is the production Client talking to the platform's REST
// content API over HTTPS with the connection's access token.
type HTTPClient struct {
	httpc  *http.Client
	logger *zap.Logger
}

func NewHTTPClient(logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		httpc:  &http.Client{Timeout: defaultRequestTimeout},
		logger: logger.Named("Storefront"),
	}
}

func (c *HTTPClient) ListProducts(ctx context.Context, conn *models.ConnectionModel) ([]Product, error) {
	body, err := c.do(ctx, conn, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, fmt.Errorf("list products for %s: %w", conn.ShopDomain, err)
	}

	var payload struct {
		Products []Product `json:"products"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode product list: %w", err)
	}
	return payload.Products, nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, conn *models.ConnectionModel, productID string) (*Product, error) {
	body, err := c.do(ctx, conn, http.MethodGet, "/products/"+productID, nil)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}

	var payload struct {
		Product Product `json:"product"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &payload.Product, nil
}

func (c *HTTPClient) UpdateProduct(ctx context.Context, conn *models.ConnectionModel, productID string, fields map[string]interface{}) error {
	reqBody, err := json.Marshal(map[string]interface{}{
		"product": fields,
	})
	if err != nil {
		return err
	}

	_, err = c.do(ctx, conn, http.MethodPut, "/products/"+productID, reqBody)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("product update timed out",
				zap.String("shop", conn.ShopDomain),
				zap.String("product_id", productID),
			)
			return ErrWriteTimeout
		}
		return fmt.Errorf("update product %s: %w", productID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, conn *models.ConnectionModel, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL(conn)+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(conn.AccessToken))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func (c *HTTPClient) baseURL(conn *models.ConnectionModel) string {
	if endpoint := strings.TrimSpace(conn.Endpoint); endpoint != "" {
		return strings.TrimRight(endpoint, "/")
	}
	return "https://" + conn.ShopDomain + "/admin/api"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

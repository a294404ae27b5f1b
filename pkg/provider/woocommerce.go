package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
)

// wooCommerce implements Client against the WooCommerce REST API v3
type wooCommerce struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

// NewWooCommerceFactory returns the production Factory creating WooCommerce
// REST clients from tenant configuration
func NewWooCommerceFactory() Factory {
	return FactoryFunc(func(cfg *model.ProviderConfig) (Client, error) {
		if cfg == nil || cfg.BaseURL == "" {
			return nil, goerr.New("provider config is missing base URL")
		}
		return &wooCommerce{
			baseURL:        cfg.BaseURL,
			consumerKey:    cfg.ConsumerKey,
			consumerSecret: cfg.ConsumerSecret,
			httpClient: &http.Client{
				Timeout: 10 * time.Second,
			},
		}, nil
	})
}

type wooProduct struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Permalink   string `json:"permalink"`
	Price       string `json:"price"`
	StockStatus string `json:"stock_status"`
	Categories  []struct {
		Name string `json:"name"`
	} `json:"categories"`
}

type wooOrder struct {
	ID       int    `json:"id"`
	Number   string `json:"number"`
	Status   string `json:"status"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

func (x *wooCommerce) SearchProducts(ctx context.Context, query string, filters SearchFilters, limit int) ([]*Product, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("orderby", "relevance")
	if filters.Category != "" {
		params.Set("category", filters.Category)
	}
	if filters.InStock {
		params.Set("stock_status", "instock")
	}
	if filters.MinPrice > 0 {
		params.Set("min_price", strconv.FormatFloat(filters.MinPrice, 'f', -1, 64))
	}
	if filters.MaxPrice > 0 {
		params.Set("max_price", strconv.FormatFloat(filters.MaxPrice, 'f', -1, 64))
	}

	var raw []wooProduct
	if err := x.get(ctx, "/wp-json/wc/v3/products", params, &raw); err != nil {
		return nil, err
	}

	products := make([]*Product, 0, len(raw))
	for _, p := range raw {
		product := &Product{
			ID:      strconv.Itoa(p.ID),
			Name:    p.Name,
			URL:     p.Permalink,
			Price:   p.Price,
			InStock: p.StockStatus == "instock",
		}
		for _, c := range p.Categories {
			product.Categories = append(product.Categories, c.Name)
		}
		products = append(products, product)
	}

	return products, nil
}

func (x *wooCommerce) GetOrder(ctx context.Context, ref string) (*Order, error) {
	var raw wooOrder
	if err := x.get(ctx, "/wp-json/wc/v3/orders/"+url.PathEscape(ref), nil, &raw); err != nil {
		return nil, err
	}

	return &Order{
		ID:       strconv.Itoa(raw.ID),
		Number:   raw.Number,
		Status:   raw.Status,
		Total:    raw.Total,
		Currency: raw.Currency,
	}, nil
}

// get performs an authenticated GET and decodes the JSON response into out,
// classifying failures into error kinds.
func (x *wooCommerce) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := x.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.SetBasicAuth(x.consumerKey, x.consumerSecret)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		kind := model.ErrorKindUnknown
		if ctx.Err() != nil || isTimeout(err) {
			kind = model.ErrorKindTimeout
		}
		return WithKind(goerr.Wrap(err, "failed to call provider API", goerr.V("url", endpoint)), kind)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := goerr.New("provider API returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
		return WithKind(err, classifyStatus(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return WithKind(goerr.Wrap(err, "failed to decode provider response"), model.ErrorKindUnknown)
	}

	return nil
}

func classifyStatus(status int) model.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.ErrorKindAuth
	case http.StatusNotFound:
		return model.ErrorKindNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return model.ErrorKindTimeout
	default:
		return model.ErrorKindUnknown
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

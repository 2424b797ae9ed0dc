package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"booktrack/pkg/models"
)

const apiVersion = "20131101"

// HTTPSource queries an Aladin-style open API (ItemLookUp / ItemSearch)
type HTTPSource struct {
	baseURL    string
	ttbKey     string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTP catalog source
func NewHTTPSource(baseURL, ttbKey string, timeout time.Duration, httpClient *http.Client) *HTTPSource {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		ttbKey:     ttbKey,
		httpClient: httpClient,
	}
}

type itemResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Item         []item `json:"item"`
}

type item struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description"`
	ISBN13      string `json:"isbn13"`
	Cover       string `json:"cover"`
	CategoryID  int64  `json:"categoryId"`
	SubInfo     struct {
		ItemPage int `json:"itemPage"`
	} `json:"subInfo"`
}

func (it item) toBook() *models.Book {
	b := &models.Book{
		ISBN:        it.ISBN13,
		Title:       it.Title,
		Author:      it.Author,
		Publisher:   it.Publisher,
		Description: it.Description,
		CoverURL:    it.Cover,
		TotalPages:  it.SubInfo.ItemPage,
	}
	if t, err := time.Parse(models.DateLayout, it.PubDate); err == nil {
		b.PublishedDate = &t
	}
	if it.CategoryID > 0 {
		id := it.CategoryID
		b.CategoryID = &id
	}
	return b
}

func (s *HTTPSource) get(ctx context.Context, endpoint string, params url.Values) (*itemResponse, error) {
	params.Set("ttbkey", s.ttbKey)
	params.Set("output", "js")
	params.Set("Version", apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var out itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	if out.ErrorCode != 0 {
		return nil, fmt.Errorf("catalog: upstream error %d: %s", out.ErrorCode, out.ErrorMessage)
	}
	return &out, nil
}

// Lookup fetches one book including its page count
func (s *HTTPSource) Lookup(ctx context.Context, isbn string) (*models.Book, error) {
	params := url.Values{}
	params.Set("ItemId", isbn)
	params.Set("ItemIdType", "ISBN13")
	params.Set("OptResult", "subInfo")

	out, err := s.get(ctx, "ItemLookUp.aspx", params)
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	book := out.Item[0].toBook()
	if book.ISBN == "" {
		book.ISBN = isbn
	}
	return book, nil
}

// Search runs a keyword search. Search results carry no page counts.
func (s *HTTPSource) Search(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	params := url.Values{}
	params.Set("Query", query)
	params.Set("QueryType", "Keyword")
	params.Set("SearchTarget", "Book")
	params.Set("MaxResults", strconv.Itoa(limit))

	out, err := s.get(ctx, "ItemSearch.aspx", params)
	if err != nil {
		return nil, err
	}

	books := make([]*models.Book, 0, len(out.Item))
	for _, it := range out.Item {
		books = append(books, it.toBook())
	}
	return books, nil
}

package api

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
)

const (
	archiveBaseURL = "https://webarchive.nationalarchives.gov.uk/ukgwa"
	legacyRatesURL = "http://www.hmrc.gov.uk/softwaredevelopers/rates"
	tariffBaseURL  = "https://www.trade-tariff.service.gov.uk"

	// HMRC stopped publishing monthly rates on the old endpoint at the end
	// of 2020; from 2021 they come from the trade-tariff service.
	newEndpointFromYear = 2021
)

// archiveCrawlSlugs are the National Archives snapshot timestamps under
// which the old HMRC endpoint was crawled, one per year. No archives exist
// for years before 2015. A pre-2021 year must have an entry here before it
// can be fetched; slugs are never inferred for other years.
var archiveCrawlSlugs = map[int]string{
	2015: "20220504145914",
	2016: "20220505063703",
	2017: "20220409150415",
	2018: "20220409144223",
	2019: "20220409162528",
	2020: "20220505131656",
}

// HMRCClient fetches monthly GBP exchange rates published by HMRC. It
// implements the service.RateSource interface.
type HMRCClient struct {
	archiveBaseURL string
	tariffBaseURL  string
	httpClient     *http.Client
	ratesFile      string
	logger         logger.Logger
}

// NewHMRCClient creates a new HMRC rates client. ratesFile is only used in
// error messages, to point the user at the file they can patch by hand when
// a fetch fails.
func NewHMRCClient(httpClient *http.Client, ratesFile string, log logger.Logger) *HMRCClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &HMRCClient{
		archiveBaseURL: archiveBaseURL,
		tariffBaseURL:  tariffBaseURL,
		httpClient:     httpClient,
		ratesFile:      ratesFile,
		logger:         log,
	}
}

// monthlyRatesURL resolves the URL and month token for the month containing
// date. Pure; performs no I/O.
func (c *HMRCClient) monthlyRatesURL(date time.Time) (string, string, error) {
	if date.Year() < newEndpointFromYear {
		token := date.Format("0106") // MMYY
		slug, ok := archiveCrawlSlugs[date.Year()]
		if !ok {
			return "", token, fmt.Errorf(
				"no National Archives crawl slug for year %d; an explicit entry must be added",
				date.Year())
		}
		url := fmt.Sprintf("%s/%smp_/%s/exrates-monthly-%s.xml",
			c.archiveBaseURL, slug, legacyRatesURL, token)
		return url, token, nil
	}

	token := date.Format("2006-01")
	url := fmt.Sprintf("%s/api/v2/exchange_rates/files/monthly_xml_%s.xml",
		c.tariffBaseURL, token)
	return url, token, nil
}

// exchangeRateDoc mirrors the HMRC monthly rates XML: a root element with
// one exchangeRate row per currency.
type exchangeRateDoc struct {
	Rows []exchangeRateRow `xml:"exchangeRate"`
}

type exchangeRateRow struct {
	CurrencyCode string `xml:"currencyCode"`
	RateNew      string `xml:"rateNew"`
}

// FetchMonthlyRates retrieves every rate HMRC published for the month
// containing date. Any transport failure, non-200 status, or row with a
// missing or unparseable field fails the whole month; there is no partial
// acceptance and no retry.
func (c *HMRCClient) FetchMonthlyRates(ctx context.Context, date time.Time) ([]entity.Rate, error) {
	month := entity.MonthKey(date)

	reqURL, token, err := c.monthlyRatesURL(month)
	if err != nil {
		return nil, entity.NewParsingError("exrates-monthly-"+token+".xml", err.Error(), nil)
	}

	c.logger.Debug("Fetching HMRC exchange rates", map[string]interface{}{
		"month": token,
		"url":   reqURL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := fmt.Sprintf(
			"error while fetching HMRC exchange rates for the month %s; "+
				"either try again or, if you are sure about the rates, add them manually in %s",
			token, c.ratesFile)
		return nil, entity.NewParsingError(reqURL, msg, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"url":   reqURL,
				"error": closeErr.Error(),
			})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, entity.NewParsingError(reqURL,
			fmt.Sprintf("HMRC API returned a %d response", resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.NewParsingError(reqURL, "failed to read response body", err)
	}

	rates, err := parseMonthlyRates(bodyBytes)
	if err != nil {
		return nil, entity.NewParsingError(reqURL, err.Error(), nil)
	}

	c.logger.Info("Fetched HMRC exchange rates", map[string]interface{}{
		"month":      token,
		"url":        reqURL,
		"currencies": len(rates),
	})

	return rates, nil
}

// parseMonthlyRates decodes the HMRC XML document into rates in document
// order. It fails closed: one malformed row invalidates the entire month.
func parseMonthlyRates(body []byte) ([]entity.Rate, error) {
	var doc exchangeRateDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("HMRC API produced invalid XML: %v", err)
	}

	rates := make([]entity.Rate, 0, len(doc.Rows))
	for i, row := range doc.Rows {
		code := strings.ToUpper(strings.TrimSpace(row.CurrencyCode))
		if code == "" {
			return nil, fmt.Errorf("HMRC API produced invalid data: row %d has no currencyCode", i)
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(row.RateNew))
		if err != nil {
			return nil, fmt.Errorf("HMRC API produced invalid data: row %d (%s) has a bad rateNew %q",
				i, code, row.RateNew)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("HMRC API produced invalid data: row %d (%s) has a non-positive rateNew %q",
				i, code, row.RateNew)
		}

		rates = append(rates, entity.Rate{Currency: code, Rate: rate})
	}

	return rates, nil
}

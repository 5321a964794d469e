package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"transportagent/internal/model"
)

// None is the placeholder used in item files for an absent value
const None = "UND"

var validate = validator.New()

var itemColumns = []string{"ticker", "yellow_key", "mnemonic", "program_code", "interface_code"}

var statusColumns = []string{"code", "getdata_descr"}

type itemRow struct {
	Ticker        string `validate:"required"`
	YellowKey     string `validate:"required"`
	Mnemonic      string `validate:"required"`
	ProgramCode   string `validate:"oneof=GETDATA GETHISTORY"`
	InterfaceCode string `validate:"required"`
}

// ReadItems parses an item CSV. The header names the columns; only ticker,
// yellow_key, mnemonic, program_code and interface_code are mandatory.
// All row errors are reported together.
func ReadItems(r io.Reader) ([]model.RequestItem, error) {
	records, index, err := readCSV(r, itemColumns)
	if err != nil {
		return nil, err
	}

	var items []model.RequestItem
	var errs []error
	for i, rec := range records {
		get := func(col string) string {
			pos, ok := index[col]
			if !ok || pos >= len(rec) {
				return ""
			}
			v := strings.TrimSpace(rec[pos])
			if v == None {
				return ""
			}
			return v
		}

		item, err := parseItem(get)
		if err != nil {
			// +2: one for the header, one for 1-based lines
			errs = append(errs, fmt.Errorf("line %d: %w", i+2, err))
			continue
		}
		items = append(items, item)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

func parseItem(get func(string) string) (model.RequestItem, error) {
	item := model.RequestItem{
		Ticker:           get("ticker"),
		YellowKey:        get("yellow_key"),
		Mnemonic:         strings.ToUpper(get("mnemonic")),
		Overrides:        get("overrides"),
		OptionalElements: get("optional_elements"),
		PricingSource:    get("pricing_source"),
		ProgramCode:      strings.ToUpper(get("program_code")),
		InterfaceCode:    strings.ToUpper(get("interface_code")),
		StartDate:        get("start_date"),
		EndDate:          get("end_date"),
		Status:           model.ItemNew,
	}

	row := itemRow{
		Ticker:        item.Ticker,
		YellowKey:     item.YellowKey,
		Mnemonic:      item.Mnemonic,
		ProgramCode:   item.ProgramCode,
		InterfaceCode: item.InterfaceCode,
	}
	if err := validate.Struct(row); err != nil {
		return item, fmt.Errorf("validation failed: %w", err)
	}

	if item.ProgramCode == model.ProgramGetHistory {
		if err := validate.Var(item.StartDate, "required,datetime=20060102"); err != nil {
			return item, fmt.Errorf("start_date %q: %w", item.StartDate, err)
		}
		if err := validate.Var(item.EndDate, "required,datetime=20060102"); err != nil {
			return item, fmt.Errorf("end_date %q: %w", item.EndDate, err)
		}
		if item.EndDate < item.StartDate {
			return item, fmt.Errorf("end_date %s before start_date %s", item.EndDate, item.StartDate)
		}
	}

	register, err := parseFlag(get("register_series"))
	if err != nil {
		return item, err
	}
	item.RegisterSeries = register

	return item, nil
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "n", "no":
		return false, nil
	case "y", "yes":
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("register_series %q is not a flag", v)
	}
	return b, nil
}

// ReadReturnStatuses parses a return-status CSV with the header
// code,getdata_descr,gethistory_descr
func ReadReturnStatuses(r io.Reader) ([]model.ReturnStatus, error) {
	records, index, err := readCSV(r, statusColumns)
	if err != nil {
		return nil, err
	}

	var out []model.ReturnStatus
	var errs []error
	for i, rec := range records {
		get := func(col string) string {
			pos, ok := index[col]
			if !ok || pos >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[pos])
		}

		code, err := strconv.Atoi(get("code"))
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: code %q is not a number", i+2, get("code")))
			continue
		}
		out = append(out, model.ReturnStatus{
			Code:            code,
			GetDataDescr:    get("getdata_descr"),
			GetHistoryDescr: get("gethistory_descr"),
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// readCSV reads every record after the header and maps lower-cased header
// names to column positions
func readCSV(r io.Reader, required []string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	return records, index, nil
}

package automation

import (
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Portal CSS hooks for the custom date range controls. The MUI class names
// are stable across portal deploys; the role/name locators are tried first
// and these are the fallbacks.
const (
	datePickerGridSelector = ".hub-reporting-console-app-web-MuiGrid-root" +
		".hub-reporting-console-app-web-MuiGrid-item" +
		".hub-reporting-console-app-web-MuiGrid-grid-xs-6"

	// Dispatches a raw synthetic click on the Custom Date Range option. The
	// option's click handler is bound only after an internal UI state flag
	// flips, which a single high-level click does not reliably trigger.
	customRangeDispatchScript = `() => {
		const elements = Array.from(document.querySelectorAll('*'));
		const target = elements.find(
			(el) => el.textContent && el.textContent.trim() === 'Custom Date Range'
		);
		if (target) {
			target.dispatchEvent(new MouseEvent('click', { bubbles: true, cancelable: true }));
		}
	}`
)

// DateRangeConfigurator scopes the report to a caller-supplied date window.
// Only invoked when both start and end dates are present.
type DateRangeConfigurator struct {
	page   playwright.Page
	settle time.Duration
}

func NewDateRangeConfigurator(page playwright.Page) *DateRangeConfigurator {
	return &DateRangeConfigurator{page: page, settle: 2 * time.Second}
}

// Configure activates the custom range control and fills both date fields.
// Failing to fill either field is fatal for the run.
func (d *DateRangeConfigurator) Configure(start, end time.Time) error {
	if err := d.activateCustomRange(); err != nil {
		return err
	}
	if err := d.revealDateFields(); err != nil {
		return err
	}

	if err := d.fillDateField("start", "Start time", 0, start); err != nil {
		return err
	}
	// Tab out of the start field so the portal commits the value. Failing
	// key presses are tolerated, the fill readback already verified the
	// value landed.
	d.pressKey("Tab")
	d.pressKey("Tab")

	if err := d.fillDateField("end", "End Date", 1, end); err != nil {
		return err
	}
	d.pressKey("Enter")

	d.page.WaitForTimeout(1000)
	return nil
}

func (d *DateRangeConfigurator) pressKey(key string) {
	if err := d.page.Keyboard().Press(key); err != nil {
		log.Printf("Key press %q failed (continuing): %v", key, err)
	}
}

// activateCustomRange is two-phase: a low-level synthetic activation event
// first, then a conventional UI click to complete the transition.
func (d *DateRangeConfigurator) activateCustomRange() error {
	if _, err := d.page.Evaluate(customRangeDispatchScript); err != nil {
		return &NavigationError{Step: "dispatch custom range activation", Err: err}
	}
	d.page.WaitForTimeout(float64(d.settle.Milliseconds()))

	_, err := runStrategies("click custom date range", []Strategy{
		{Name: "text lookup", Apply: func() error {
			return d.page.GetByText("Custom Date Range").Click()
		}},
		{Name: "filtered div lookup", Apply: func() error {
			return d.page.Locator("div", playwright.PageLocatorOptions{
				HasText: regexp.MustCompile(`^Custom Date Range$`),
			}).Last().Click()
		}},
	})
	if err != nil {
		return err
	}

	d.page.WaitForTimeout(float64(d.settle.Milliseconds()))
	return nil
}

// revealDateFields clicks the supporting grid element that makes the
// date-entry inputs visible.
func (d *DateRangeConfigurator) revealDateFields() error {
	if err := d.page.Locator(datePickerGridSelector).First().Click(); err != nil {
		return &NavigationError{Step: "activate date picker grid", Err: err}
	}
	d.page.WaitForTimeout(float64(d.settle.Milliseconds()))
	return nil
}

// fillDateField tries each field-locator strategy in order. A strategy only
// counts as successful when the readback after filling is non-empty, which
// guards against silent no-op fills.
func (d *DateRangeConfigurator) fillDateField(which, accessibleName string, index int, value time.Time) error {
	formatted := value.Format("2006-01-02")

	locators := []struct {
		name string
		find func() playwright.Locator
	}{
		{"role and name", func() playwright.Locator {
			return d.page.GetByRole(*playwright.AriaRoleTextbox, playwright.PageGetByRoleOptions{Name: accessibleName})
		}},
		{"aria-label substring", func() playwright.Locator {
			return d.page.Locator(fmt.Sprintf(`input[aria-label*=%q]`, accessibleName)).First()
		}},
		{"placeholder substring", func() playwright.Locator {
			return d.page.Locator(fmt.Sprintf(`input[placeholder*=%q]`, which)).First()
		}},
		{"name attribute substring", func() playwright.Locator {
			return d.page.Locator(fmt.Sprintf(`input[name*=%q]`, which)).First()
		}},
		{"date input type", func() playwright.Locator {
			return d.page.Locator(`input[type="date"]`).Nth(index)
		}},
		{"positional index", func() playwright.Locator {
			return d.page.Locator("input").Nth(index)
		}},
	}

	strategies := make([]Strategy, 0, len(locators))
	for _, loc := range locators {
		find := loc.find
		strategies = append(strategies, Strategy{
			Name: loc.name,
			Apply: func() error {
				field := find()
				if err := field.Fill(formatted, playwright.LocatorFillOptions{
					Timeout: playwright.Float(3000),
				}); err != nil {
					return err
				}
				readback, err := field.InputValue()
				if err != nil {
					return err
				}
				if readback == "" {
					return fmt.Errorf("fill produced empty value")
				}
				return nil
			},
		})
	}

	_, err := runStrategies(fmt.Sprintf("fill %s date field", which), strategies)
	return err
}

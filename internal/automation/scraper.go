package automation

import (
	"fmt"
	"log"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/nwtelemetry/huboffload/internal/models"
)

const (
	downloadModalButtonSelector = "#qr-export-modal-download"

	deviceExportTileName    = "Inbound Daily NASID Summary"
	aggregateExportTileName = "Data Usage Timeline - Tile"
)

// Scraper runs a full browser session per scrape: launch, authenticate,
// navigate, trigger the export, capture the response, tear down. Sessions
// are not reused across runs.
type Scraper struct {
	creds    Credentials
	headless bool
}

func NewScraper(creds Credentials, headless bool) *Scraper {
	return &Scraper{creds: creds, headless: headless}
}

// ScrapeDevice captures the NASID Daily export for one device. Zero start
// and end dates keep the report on its default window.
func (s *Scraper) ScrapeDevice(nasID string, start, end time.Time) (*models.RawExportFile, error) {
	var file *models.RawExportFile
	err := s.withSession(func(session *SessionController) error {
		if err := session.NavigateToDeviceReport(nasID, start, end); err != nil {
			return err
		}
		frame, err := session.AwaitReport()
		if err != nil {
			return err
		}

		capture := NewExportCapture(session.Portal())
		file, err = capture.Run(s.exportTrigger(session.Portal(), frame, deviceExportTileName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ScrapeAggregate captures the Data Usage Timeline export covering all
// devices.
func (s *Scraper) ScrapeAggregate() (*models.RawExportFile, error) {
	var file *models.RawExportFile
	err := s.withSession(func(session *SessionController) error {
		if err := session.NavigateToTimelineReport(); err != nil {
			return err
		}
		frame, err := session.AwaitReport()
		if err != nil {
			return err
		}

		capture := NewExportCapture(session.Portal())
		file, err = capture.Run(s.exportTrigger(session.Portal(), frame, aggregateExportTileName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Scraper) withSession(fn func(*SessionController) error) error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	defer func() {
		if err := pw.Stop(); err != nil {
			log.Printf("Failed to stop playwright: %v", err)
		}
	}()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
		Args:     []string{"--no-sandbox", "--disable-dev-shm-usage"},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Printf("Failed to close browser: %v", err)
		}
	}()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}

	session := NewSessionController(page, s.creds)
	if err := session.Authenticate(); err != nil {
		return err
	}
	if err := session.LaunchPortal(); err != nil {
		return err
	}
	return fn(session)
}

// exportTrigger builds the strategy chain that opens the export dialog and
// confirms the CSV download. The modal button sits outside the report
// iframe and is notoriously hard to hit, hence the three click variants.
func (s *Scraper) exportTrigger(portal playwright.Page, frame playwright.FrameLocator, tileName string) []Strategy {
	openDialog := func() error {
		if err := frame.GetByRole(*playwright.AriaRoleButton, playwright.FrameLocatorGetByRoleOptions{
			Name: tileName,
		}).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(10000)}); err != nil {
			return fmt.Errorf("failed to open export menu: %w", err)
		}
		if err := frame.GetByRole(*playwright.AriaRoleMenuitem, playwright.FrameLocatorGetByRoleOptions{
			Name: "Download data",
		}).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(10000)}); err != nil {
			return fmt.Errorf("failed to select download: %w", err)
		}
		if err := frame.GetByRole(*playwright.AriaRoleCombobox, playwright.FrameLocatorGetByRoleOptions{
			Name: "Format combobox",
		}).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(10000)}); err != nil {
			return fmt.Errorf("failed to open format picker: %w", err)
		}
		if err := frame.GetByRole(*playwright.AriaRoleOption, playwright.FrameLocatorGetByRoleOptions{
			Name: "CSV",
		}).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(10000)}); err != nil {
			return fmt.Errorf("failed to pick CSV format: %w", err)
		}
		portal.WaitForTimeout(500)
		return nil
	}

	download := portal.Locator(downloadModalButtonSelector)
	return []Strategy{
		{Name: "script click", Apply: func() error {
			if err := openDialog(); err != nil {
				return err
			}
			_, err := download.Evaluate("el => el.click()", nil)
			return err
		}},
		{Name: "scroll and click", Apply: func() error {
			if err := download.ScrollIntoViewIfNeeded(); err != nil {
				return err
			}
			return download.Click(playwright.LocatorClickOptions{
				Timeout: playwright.Float(5000),
				Force:   playwright.Bool(true),
			})
		}},
		{Name: "keyboard", Apply: func() error {
			if err := portal.Keyboard().Press("Tab"); err != nil {
				return err
			}
			return portal.Keyboard().Press("Enter")
		}},
	}
}

package automation

import (
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
)

// State tracks the session automation state machine. Transitions are
// strictly sequential: each step assumes the DOM and session state left by
// the previous one.
type State int

const (
	StateUnauthenticated State = iota
	StateCredentialsSubmitted
	StateMfaOrPasswordSelected
	StateAuthenticated
	StatePortalLaunched
	StateReportNavigated
	StateDateRangeConfigured
	StateDeviceFiltered
	StateReportReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateCredentialsSubmitted:
		return "CredentialsSubmitted"
	case StateMfaOrPasswordSelected:
		return "MfaOrPasswordSelected"
	case StateAuthenticated:
		return "Authenticated"
	case StatePortalLaunched:
		return "PortalLaunched"
	case StateReportNavigated:
		return "ReportNavigated"
	case StateDateRangeConfigured:
		return "DateRangeConfigured"
	case StateDeviceFiltered:
		return "DeviceFiltered"
	case StateReportReady:
		return "ReportReady"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Credentials for the SSO sign-in flow.
type Credentials struct {
	StartURL string
	Email    string
	Password string
}

// Portal CSS hooks for NASID Daily navigation.
const (
	nasidInputSelector    = ".sd-multi-auto-complete-pseudo-input"
	nasidDropdownSelector = ".hub-reporting-console-app-web-MuiTypography-root" +
		".hub-reporting-console-app-web-MuiTypography-body1"
	nasidTextInputSelector = ".hub-reporting-console-app-web-MuiInputBase-input" +
		".hub-reporting-console-app-web-MuiInput-input"
	timelineScrollSelector = ".hub-reporting-console-app-web-MuiBox-root" +
		".hub-reporting-console-app-web-sd-prod24 > div:nth-child(2) > div"

	timelineArrowDownPresses = 11
)

// SessionController drives the login and navigation state machine up to the
// point where the report export is possible.
type SessionController struct {
	login  playwright.Page
	portal playwright.Page
	creds  Credentials
	state  State
}

func NewSessionController(page playwright.Page, creds Credentials) *SessionController {
	return &SessionController{login: page, creds: creds, state: StateUnauthenticated}
}

func (c *SessionController) State() State { return c.state }

// Portal returns the portal popup page. Valid after LaunchPortal.
func (c *SessionController) Portal() playwright.Page { return c.portal }

func (c *SessionController) advance(to State, step func() error) error {
	if err := step(); err != nil {
		return err
	}
	log.Printf("Session state: %s", to)
	c.state = to
	return nil
}

// Authenticate walks the SSO sign-in flow. Any failure is an
// AuthenticationError and is never retried: a second credential submission
// against a locked-out flow risks locking the account.
func (c *SessionController) Authenticate() error {
	if _, err := c.login.Goto(c.creds.StartURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return &AuthenticationError{Step: "open sign-in page", Err: err}
	}

	err := c.advance(StateCredentialsSubmitted, func() error {
		if _, err := runStrategies("fill email", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.login.GetByRole(*playwright.AriaRoleTextbox, playwright.PageGetByRoleOptions{
					Name: "Email Address",
				}).Fill(c.creds.Email)
			}},
			{Name: "email input type", Apply: func() error {
				return c.login.Locator(`input[type="email"]`).First().Fill(c.creds.Email)
			}},
			{Name: "identifier name attribute", Apply: func() error {
				return c.login.Locator(`input[name="identifier"]`).Fill(c.creds.Email)
			}},
		}); err != nil {
			return err
		}

		_, err := runStrategies("click next", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.login.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
					Name: "Next",
				}).Click()
			}},
			{Name: "submit input", Apply: func() error {
				return c.login.Locator(`input[type="submit"]`).First().Click()
			}},
		})
		return err
	})
	if err != nil {
		return &AuthenticationError{Step: "submit credentials", Err: err}
	}

	err = c.advance(StateMfaOrPasswordSelected, func() error {
		_, err := runStrategies("select password factor", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.login.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
					Name: "Select Password.",
				}).Click()
			}},
			{Name: "text lookup", Apply: func() error {
				return c.login.GetByText("Select Password").Click()
			}},
		})
		return err
	})
	if err != nil {
		return &AuthenticationError{Step: "select password factor", Err: err}
	}

	err = c.advance(StateAuthenticated, func() error {
		if _, err := runStrategies("fill password", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.login.GetByRole(*playwright.AriaRoleTextbox, playwright.PageGetByRoleOptions{
					Name: "Password",
				}).Fill(c.creds.Password)
			}},
			{Name: "password input type", Apply: func() error {
				return c.login.Locator(`input[type="password"]`).First().Fill(c.creds.Password)
			}},
		}); err != nil {
			return err
		}

		_, err := runStrategies("click verify", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.login.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
					Name: "Verify",
				}).Click()
			}},
			{Name: "submit input", Apply: func() error {
				return c.login.Locator(`input[type="submit"]`).First().Click()
			}},
		})
		return err
	})
	if err != nil {
		return &AuthenticationError{Step: "verify password", Err: err}
	}

	return nil
}

// LaunchPortal opens the HUB portal popup from the SSO dashboard.
func (c *SessionController) LaunchPortal() error {
	return c.advance(StatePortalLaunched, func() error {
		popup, err := c.login.ExpectPopup(func() error {
			return c.login.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
				Name: "launch app HUB Portal",
			}).Click()
		})
		if err != nil {
			return &NavigationError{Step: "launch portal popup", Err: err}
		}
		c.portal = popup
		return nil
	})
}

// NavigateToDeviceReport reaches the NASID Daily report, optionally scoped
// to a custom date window, and filters it down to one NAS ID.
func (c *SessionController) NavigateToDeviceReport(nasID string, start, end time.Time) error {
	err := c.advance(StateReportNavigated, func() error {
		if _, err := runStrategies("open data usage section", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.portal.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
					Name: "Data Usage",
				}).Click()
			}},
			{Name: "text lookup", Apply: func() error {
				return c.portal.GetByText("Data Usage").First().Click()
			}},
		}); err != nil {
			return err
		}
		c.portal.WaitForTimeout(1000)

		_, err := runStrategies("open nasid daily report", []Strategy{
			{Name: "role lookup", Apply: func() error {
				return c.portal.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
					Name: "NASID Daily",
				}).Click()
			}},
			{Name: "text lookup", Apply: func() error {
				return c.portal.GetByText("NASID Daily").Click()
			}},
		})
		return err
	})
	if err != nil {
		return err
	}

	if !start.IsZero() && !end.IsZero() {
		err = c.advance(StateDateRangeConfigured, func() error {
			return NewDateRangeConfigurator(c.portal).Configure(start, end)
		})
		if err != nil {
			return err
		}
	}

	return c.advance(StateDeviceFiltered, func() error {
		return c.filterDevice(nasID)
	})
}

func (c *SessionController) filterDevice(nasID string) error {
	input := c.portal.Locator(nasidInputSelector).First()
	if err := input.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return &NavigationError{Step: "wait for nasid input", Err: err}
	}
	if err := input.Click(); err != nil {
		return &NavigationError{Step: "click nasid input", Err: err}
	}

	dropdown := c.portal.Locator(nasidDropdownSelector)
	if err := dropdown.First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return &NavigationError{Step: "wait for nasid dropdown", Err: err}
	}
	c.portal.WaitForTimeout(500)

	if _, err := runStrategies("select nasid dropdown option", []Strategy{
		{Name: "filtered option", Apply: func() error {
			option := dropdown.Filter(playwright.LocatorFilterOptions{
				HasText: regexp.MustCompile(`(?i)nasid`),
			}).First()
			count, err := option.Count()
			if err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("no NASID-labelled option found")
			}
			return option.Click()
		}},
		{Name: "first option", Apply: func() error {
			return dropdown.First().Click()
		}},
	}); err != nil {
		return err
	}

	textInput := c.portal.Locator(nasidTextInputSelector)
	if err := textInput.First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return &NavigationError{Step: "wait for nasid text input", Err: err}
	}
	if err := textInput.First().Fill(nasID); err != nil {
		return &NavigationError{Step: "fill nasid", Err: err}
	}

	_, err := runStrategies("apply device filter", []Strategy{
		{Name: "update panel then button", Apply: func() error {
			if err := c.portal.Locator("div", playwright.PageLocatorOptions{
				HasText: regexp.MustCompile(`^Auto-updateUpdate$`),
			}).Last().Click(); err != nil {
				return err
			}
			return c.portal.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
				Name: "Update",
			}).Click()
		}},
		{Name: "update button only", Apply: func() error {
			return c.portal.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
				Name: "Update",
			}).Click()
		}},
	})
	return err
}

// NavigateToTimelineReport reaches the aggregate Data Usage Timeline
// report. The timeline has no device filter; the contract list scroll plays
// that role.
func (c *SessionController) NavigateToTimelineReport() error {
	err := c.advance(StateReportNavigated, func() error {
		if err := c.portal.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
			Name: "Data Usage",
		}).Click(); err != nil {
			return &NavigationError{Step: "open data usage section", Err: err}
		}
		if err := c.portal.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
			Name: "Data Usage Timeline",
		}).Click(); err != nil {
			return &NavigationError{Step: "open timeline report", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.advance(StateDeviceFiltered, func() error {
		// Focus click before scrolling the contract list; failures are
		// tolerated, the arrow keys still land on the page.
		if err := c.portal.Locator(timelineScrollSelector).Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(3000),
		}); err != nil {
			log.Printf("Timeline focus click failed (continuing): %v", err)
		}

		for i := 0; i < timelineArrowDownPresses; i++ {
			if err := c.portal.GetByText("loading...ContractSInbound").Press("ArrowDown",
				playwright.LocatorPressOptions{Timeout: playwright.Float(1000)}); err != nil {
				if kerr := c.portal.Keyboard().Press("ArrowDown"); kerr != nil {
					log.Printf("ArrowDown press %d failed: %v", i+1, kerr)
				}
			}
		}
		return nil
	})
}

// AwaitReport waits for the report iframe and returns its frame locator.
// The controller reaches its terminal ReportReady state.
func (c *SessionController) AwaitReport() (playwright.FrameLocator, error) {
	var frame playwright.FrameLocator
	err := c.advance(StateReportReady, func() error {
		if err := c.portal.Locator("iframe").First().WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(30000),
		}); err != nil {
			return &NavigationError{Step: "wait for report iframe", Err: err}
		}
		frame = c.portal.FrameLocator("iframe")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

package librarian

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/common"
	"rubbergod.cz/discord-bot/internal/config"
)

// maxPlace is how many runes of a weather place are sent upstream.
const maxPlace = 100

// Nameday languages.
const (
	LangCzech  = "cs"
	LangSlovak = "sk"
)

// Service talks to the nameday and weather APIs.
type Service struct {
	fetcher      *common.Fetcher
	namedayURL   string
	weatherURL   string
	weatherToken string
	place        string
	startingWeek int
	now          func() time.Time
}

// NewService creates the librarian. now gives the current time in the
// guild's zone.
func NewService(fetcher *common.Fetcher, cfg *config.Config, now func() time.Time) *Service {
	return &Service{
		fetcher:      fetcher,
		namedayURL:   cfg.NamedayURL,
		weatherURL:   cfg.WeatherURL,
		weatherToken: cfg.WeatherToken,
		place:        cfg.WeatherPlace,
		startingWeek: cfg.StartingWeek,
		now:          now,
	}
}

type nameday struct {
	Name string `json:"name"`
}

// Nameday returns the names celebrating today in lang.
func (s *Service) Nameday(ctx context.Context, lang string) ([]string, error) {
	u, err := url.Parse(s.namedayURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nameday url: %v", common.ErrUpstream, err)
	}
	q := u.Query()
	q.Set("date", s.now().Format("0201"))
	if lang == LangSlovak {
		q.Set("lang", LangSlovak)
	}
	u.RawQuery = q.Encode()

	var days []nameday
	if err := s.fetcher.GetJSON(ctx, u.String(), &days); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d.Name != "" {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// NamedayText is the nameday announcement of today in lang.
func (s *Service) NamedayText(ctx context.Context, lang string) (string, error) {
	names, err := s.Nameday(ctx, lang)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return msgNamedayNobody, nil
	}
	format := msgNamedayCs
	if lang == LangSlovak {
		format = msgNamedaySk
	}
	return fmt.Sprintf(format, strings.Join(names, ", ")), nil
}

// Week holds the parity of the calendar and study week.
type Week struct {
	Calendar int
	Study    int
}

// Even reports whether n is an even week.
func Even(n int) bool {
	return n%2 == 0
}

// Week returns the ISO week and the study week of today.
func (s *Service) Week() Week {
	_, week := s.now().ISOWeek()
	return Week{Calendar: week, Study: week - s.startingWeek}
}

// Weather is the part of the current weather response that is shown.
type Weather struct {
	Place       string
	Country     string
	Description string
	Icon        string
	Temp        float64
	FeelsLike   float64
	Humidity    int
	Clouds      int
	// Visibility in meters, negative when unknown.
	Visibility int
	Wind       float64
}

// code is the "cod" field, which the API sends as a number or a string.
type code int

func (c *code) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("bad cod %s: %w", b, err)
	}
	*c = code(n)
	return nil
}

type weatherResponse struct {
	Cod     code   `json:"cod"`
	Message string `json:"message"`
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Visibility *int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

// UpstreamError carries the message the weather API attached to a failure.
type UpstreamError struct {
	Err     error
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Weather returns the current weather at place, or at the default place
// when place is empty. Places containing "&" are never looked up.
func (s *Service) Weather(ctx context.Context, place string) (*Weather, error) {
	place = cut(strings.TrimSpace(place), maxPlace)
	if place == "" {
		place = s.place
	}
	if strings.Contains(place, "&") {
		return nil, fmt.Errorf("%w: place %q", common.ErrNotFound, place)
	}

	u, err := url.Parse(s.weatherURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad weather url: %v", common.ErrUpstream, err)
	}
	q := u.Query()
	q.Set("q", place)
	q.Set("units", "metric")
	q.Set("lang", "cz")
	q.Set("appid", s.weatherToken)
	u.RawQuery = q.Encode()

	var res weatherResponse
	fetchErr := s.fetcher.GetJSON(ctx, u.String(), &res)
	if res.Cod != 0 {
		if err := common.StatusError(int(res.Cod)); err != nil {
			return nil, &UpstreamError{Err: err, Message: res.Message}
		}
	}
	if fetchErr != nil {
		return nil, &UpstreamError{Err: fetchErr, Message: res.Message}
	}
	if len(res.Weather) == 0 {
		return nil, fmt.Errorf("%w: response without weather", common.ErrUpstream)
	}

	w := &Weather{
		Place:       res.Name,
		Country:     res.Sys.Country,
		Description: res.Weather[0].Description,
		Icon:        res.Weather[0].Icon,
		Temp:        res.Main.Temp,
		FeelsLike:   res.Main.FeelsLike,
		Humidity:    res.Main.Humidity,
		Clouds:      res.Clouds.All,
		Visibility:  -1,
		Wind:        res.Wind.Speed,
	}
	if res.Visibility != nil {
		w.Visibility = *res.Visibility
	}
	log.WithFields(log.Fields{"component": "librarian", "place": w.Place}).Debug("Weather fetched")
	return w, nil
}

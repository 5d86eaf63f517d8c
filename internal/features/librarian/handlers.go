package librarian

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
)

const (
	msgNamedayCs      = "Dnes má svátek %s"
	msgNamedaySk      = "Dnes má meniny %s"
	msgNamedayNobody  = "Today nobody celebrates a nameday."
	msgNamedayError   = "The nameday service is not available right now."
	msgPlaceNotFound  = "Place not found."
	msgWeatherToken   = "The weather token is not valid, tell the admin."
	msgWeatherError   = "Weather lookup failed: %s"
	msgInvalidHash    = "Unknown hash function, see `hashlist`."
	msgHashUsage      = "Usage: `hash <function> <data>`"
	msgBase64Usage    = "Usage: `base64 encode|decode <data>`"
	msgEven           = "even"
	msgOdd            = "odd"
	quoteLength       = 50
	weatherIconFormat = "https://openweathermap.org/img/w/%s.png"
)

// Handler serves the librarian commands.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Commands returns the command table of the feature.
func (h *Handler) Commands() []*chat.Command {
	return []*chat.Command{
		{Name: "svatek", Aliases: []string{"svátek"}, Help: "Czech nameday of today.", Run: h.HandleSvatek},
		{Name: "meniny", Aliases: []string{"sviatok"}, Help: "Slovak nameday of today.", Run: h.HandleMeniny},
		{Name: "week", Aliases: []string{"tyden", "týden", "tyzden", "týždeň"}, Help: "Is this week odd or even?", Run: h.HandleWeek},
		{Name: "weather", Aliases: []string{"počasí", "pocasi", "počasie", "pocasie"}, Help: "Current weather at a place.", Run: h.HandleWeather},
		{Name: "base64", Aliases: []string{"b64"}, Help: "Encode or decode base64.", Run: h.HandleBase64},
		{Name: "hashlist", Help: "List the hash functions.", Run: h.HandleHashList},
		{Name: "hash", Help: "Hash the data with a function.", Run: h.HandleHash},
	}
}

// HandleSvatek: "svatek".
func (h *Handler) HandleSvatek(c *chat.Context) error {
	return h.nameday(c, LangCzech)
}

// HandleMeniny: "meniny".
func (h *Handler) HandleMeniny(c *chat.Context) error {
	return h.nameday(c, LangSlovak)
}

func (h *Handler) nameday(c *chat.Context, lang string) error {
	text, err := h.service.NamedayText(c.Ctx, lang)
	if err != nil {
		c.Log.WithError(err).Warn("Nameday lookup failed")
		c.Send(msgNamedayError)
		return nil
	}
	c.Send("%s", text)
	return nil
}

// HandleWeek: "week".
func (h *Handler) HandleWeek(c *chat.Context) error {
	w := h.service.Week()
	card := c.Card(0)
	card.Field("Study week", fmt.Sprintf("%s (%d)", parity(w.Study), w.Study), true)
	card.Field("Calendar week", fmt.Sprintf("%s (%d)", parity(w.Calendar), w.Calendar), true)
	c.SendCard(card, false)
	c.DeleteCommand()
	c.RoomCheck()
	return nil
}

// HandleWeather: "weather [place]".
func (h *Handler) HandleWeather(c *chat.Context) error {
	w, err := h.service.Weather(c.Ctx, c.Rest(0))
	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.Is(err, common.ErrNotFound):
			c.Send(msgPlaceNotFound)
		case errors.Is(err, common.ErrUnauthorized):
			c.Log.WithError(err).Error("Weather token rejected")
			c.Send(msgWeatherToken)
		case errors.As(err, &upstream) && upstream.Message != "":
			c.Send(msgWeatherError, upstream.Message)
		default:
			c.Log.WithError(err).Warn("Weather lookup failed")
			c.Send(msgWeatherError, "service unavailable")
		}
		return nil
	}

	description := w.Place
	if w.Country != "" && w.Country != "CZ" {
		description += ", " + w.Country
	}

	card := c.Card(0)
	card.Title = capitalize(w.Description)
	card.Description = "Weather in " + description
	if w.Icon != "" {
		card.Thumbnail(fmt.Sprintf(weatherIconFormat, w.Icon))
	}
	card.Field("Temperature", fmt.Sprintf("%.1f °C, feels like %.1f °C", round1(w.Temp), round1(w.FeelsLike)), false)
	card.Field("Humidity", fmt.Sprintf("%d %%", w.Humidity), true)
	card.Field("Clouds", fmt.Sprintf("%d %%", w.Clouds), true)
	if w.Visibility >= 0 {
		card.Field("Visibility", fmt.Sprintf("%d km", w.Visibility/1000), true)
	}
	card.Field("Wind", fmt.Sprintf("%g m/s", w.Wind), true)
	c.SendCard(card, false)
	c.RoomCheck()
	return nil
}

// HandleBase64: "base64 encode|decode <data>".
func (h *Handler) HandleBase64(c *chat.Context) error {
	dir, ok := ParseDirection(c.Arg(0))
	data := c.Rest(1)
	if !ok || data == "" {
		c.Send(msgBase64Usage)
		return nil
	}
	result, err := Base64(dir, data)
	if err != nil {
		c.Send("> %s", err)
		return nil
	}
	c.Send("**base64 %s** (%s):\n> ```%s```", dir, quote(data), result)
	c.RoomCheck()
	return nil
}

// HandleHashList: "hashlist".
func (h *Handler) HandleHashList(c *chat.Context) error {
	c.Send("**hash functions**\n> %s", strings.Join(HashList(), " "))
	return nil
}

// HandleHash: "hash <fn> <data>".
func (h *Handler) HandleHash(c *chat.Context) error {
	fn, data := c.Arg(0), c.Rest(1)
	if fn == "" || data == "" {
		c.Send(msgHashUsage)
		return nil
	}
	digest, err := Hash(fn, data)
	if err != nil {
		c.Send(msgInvalidHash)
		return nil
	}
	c.Send("**%s** (%s):\n> ```%s```", strings.ToLower(fn), quote(data), digest)
	return nil
}

func parity(n int) string {
	if Even(n) {
		return msgEven
	}
	return msgOdd
}

// quote shortens user data echoed back and strips mentions.
func quote(s string) string {
	s = strings.NewReplacer("@", "@\u200b", "`", "'").Replace(s)
	return common.Truncate(s, quoteLength)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

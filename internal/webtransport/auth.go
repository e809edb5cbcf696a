package webtransport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/komodore/core/internal/model"
)

// claims is the JWT payload Core mints and verifies, per spec §6 ("JWT
// with id, iat, exp"). Login ceremonies that produce a caller worth
// minting a token for (password check, OIDC/GitHub/Google code exchange)
// are out of scope; ExchangeForJwt and authenticate are the in-scope
// halves either side of that boundary.
type claims struct {
	jwt.RegisteredClaims
	UserId string `json:"id"`
}

const jwtTTL = 14 * 24 * time.Hour

// mintJwt signs a token for userId using the configured secret.
func (s *Server) mintJwt(userId string) (string, error) {
	now := s.deps.Clock.Now()
	c := claims{
		UserId: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString([]byte(s.deps.Config.JwtSecret))
}

// authenticate extracts and verifies the bearer JWT on r, looking up the
// user it names. Every /read, /write, /execute, /user, /terminal and
// /ws request passes through this.
func (s *Server) authenticate(r *http.Request) (*model.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", model.ErrUnauthorized)
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return []byte(s.deps.Config.JwtSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", model.ErrUnauthorized)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", model.ErrUnauthorized)
	}

	user, err := s.deps.Store.GetUser(c.UserId)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown token subject", model.ErrUnauthorized)
	}
	if !user.Enabled {
		return nil, fmt.Errorf("%w: user disabled", model.ErrUnauthorized)
	}
	return user, nil
}

// loginLocalUserParams is the /auth LoginLocalUser variant's request.
type loginLocalUserParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// jwtResponse is the common shape returned by every /auth variant that
// succeeds in producing a usable session.
type jwtResponse struct {
	Jwt string `json:"jwt"`
}

// loginOptionsResponse advertises which login mechanisms are
// configured, per spec §6's GetLoginOptions.
type loginOptionsResponse struct {
	Local  bool `json:"local"`
	Oidc   bool `json:"oidc"`
	Github bool `json:"github"`
	Google bool `json:"google"`
}

var authVariants = variantTable{
	"GetLoginOptions": func(s *Server, w *webReq) (any, error) {
		return loginOptionsResponse{Local: true}, nil
	},
	"LoginLocalUser": func(s *Server, w *webReq) (any, error) {
		var p loginLocalUserParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		user, err := s.deps.Store.FindUserByUsername(p.Username)
		if err != nil {
			return nil, model.ErrUnauthorized
		}
		if err := s.deps.Facade.VerifyPassword(user, p.Password); err != nil {
			return nil, err
		}
		if !user.Enabled {
			return nil, fmt.Errorf("%w: user disabled", model.ErrUnauthorized)
		}
		tok, err := s.mintJwt(user.Id)
		if err != nil {
			return nil, err
		}
		return jwtResponse{Jwt: tok}, nil
	},
	"ExchangeForJwt": func(s *Server, w *webReq) (any, error) {
		// The provider-side code exchange (OIDC/GitHub/Google) that
		// would produce a verified external identity here is out of
		// scope; this variant only mints a Core JWT for a user id a
		// caller has already established out-of-band.
		var p struct {
			UserId string `json:"user_id"`
		}
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		user, err := s.deps.Store.GetUser(p.UserId)
		if err != nil {
			return nil, err
		}
		if !user.Enabled {
			return nil, fmt.Errorf("%w: user disabled", model.ErrUnauthorized)
		}
		tok, err := s.mintJwt(user.Id)
		if err != nil {
			return nil, err
		}
		return jwtResponse{Jwt: tok}, nil
	},
}

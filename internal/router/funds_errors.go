package router

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/gateway"
)

func errUnauthorizedTake(name string, token asset.Token, have, want uint64) error {
	return fmt.Errorf("%w: gateway %s allowance %d < %d %s",
		gateway.ErrUnauthorized, name, have, want, token)
}

func errShortCustody(token asset.Token, held, want uint64) error {
	return fmt.Errorf("%w: engine holds %d < %d %s",
		ErrInsufficientFunds, held, want, token)
}

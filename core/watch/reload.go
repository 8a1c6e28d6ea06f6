package watch

import (
	"context"
	"reflect"

	"github.com/relabs-tech/jsonserver/core/logger"
)

// Reloadable is a document holder which can reload its document. It is implemented
// by *service.Service.
type Reloadable interface {
	Reload(ctx context.Context) (bool, error)
	Resources() []string
}

// Reloader returns an OnChange callback which reloads s. A document which cannot be
// loaded is reported and the current one stays in place. If the set of resources
// changed, onResources is called with the new set.
func Reloader(s Reloadable, onResources func(resources []string)) func(ctx context.Context) {
	return func(ctx context.Context) {
		rlog := logger.FromContext(ctx)
		before := s.Resources()
		changed, err := s.Reload(ctx)
		if err != nil {
			rlog.WithError(err).Errorln("Error 4751: cannot reload document, keeping the current one")
			return
		}
		if !changed {
			return
		}
		rlog.Infoln("reloaded document")
		after := s.Resources()
		if onResources != nil && !reflect.DeepEqual(before, after) {
			onResources(after)
		}
	}
}

package app

import (
	"github.com/vk/signalgridgo/internal/registry"
	"github.com/vk/signalgridgo/internal/runstore"
	"github.com/vk/signalgridgo/modules/ingress"
	"github.com/vk/signalgridgo/modules/memsink"
	"github.com/vk/signalgridgo/modules/sqlitesink"
	"github.com/vk/signalgridgo/modules/webhook"
)

// coreModules is the definitive list of all modules that are compiled into
// the signalgridgo binary. The memory sink gets the application's run
// archive injected.
func coreModules(store *runstore.Store) []registry.Module {
	return []registry.Module{
		&ingress.Module{},
		&memsink.Module{Store: store},
		&sqlitesink.Module{},
		&webhook.Module{},
	}
}

package agent

import (
	"kasal/app/config"
	"kasal/app/service/memory"
	"kasal/app/service/search"

	"github.com/samber/do"
)

// Service exposes the memory system to LLM agents, both as langchaingo
// tools and over MCP stdio.
type Service struct {
	cfg       *config.Config
	memorySvc *memory.Service
	searchSvc *search.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:       do.MustInvoke[*config.Config](di),
		memorySvc: do.MustInvoke[*memory.Service](di),
		searchSvc: do.MustInvoke[*search.Service](di),
	}, nil
}

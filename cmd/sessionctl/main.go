package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/extsession/internal/admin"
	"github.com/dmitrijs2005/extsession/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := admin.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/PatchLens/go-entry-splice/splice"
	"github.com/PatchLens/go-entry-splice/splice/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags)

	opts, err := cmd.ParseFlags()
	if err != nil {
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	} else if err = opts.Prepare(); err != nil {
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := splice.Run(ctx, opts); err != nil {
		stop()
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	}
}

package main

import (
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/app"
)

func main() {
	if err := app.SetupAndRunMailer(); err != nil {
		log.Fatal(err)
	}
}

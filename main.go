package main

import "github.com/bassamadnan/mailsheet/app"

func main() {
	app.Execute()
}

package main

import "github.com/stoik/contactsync/services/sync-service/internal/app"

func main() {
	app.Execute()
}

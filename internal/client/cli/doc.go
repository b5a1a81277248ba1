// Package cli implements the interactive filevault command line client.
//
// The REPL reads one command per line:
//
//	upload <path>            upload a local file
//	list [key=value ...]     list files; keys: search, file_type, min_size,
//	                         max_size, start_date, end_date
//	show <id>                print one file's metadata
//	download <id> <path>     save a file's content to path
//	delete <id>              delete a file
//	stats                    print storage usage and dedup savings
//	types                    print distinct content types
//	exit | quit              leave the program
package cli

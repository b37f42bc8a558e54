/*
Package atomicfile writes files so that readers never observe a partially
written file: data goes to a temporary file in the destination directory
which is renamed over the destination only after a successful Sync and
Close.

molstore uses it for store metadata (__schema__.json), the written-rows
bitmap (__valid__.roar) and for files downloaded or decompressed into a
storage directory.

	func writeMeta(path string, d []byte) error {
		f, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		// calling Close() twice is a no-op
		defer f.Close()

		if _, err = f.Write(d); err != nil {
			return err
		}
		return f.Close()
	}
*/
package atomicfile

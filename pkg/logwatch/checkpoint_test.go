package logwatch_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gatewaylabs/logwatch/pkg/logwatch"
)

var _ = Describe("FileCheckpointStore", func() {
	var (
		dir   string
		store *logwatch.FileCheckpointStore
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "checkpoint-test-")
		Expect(err).NotTo(HaveOccurred())
		store = logwatch.NewFileCheckpointStore(filepath.Join(dir, "state.json"))
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("should load a zero checkpoint when no state file exists", func() {
		cp, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(Equal(logwatch.Checkpoint{}))
	})

	It("should round-trip a checkpoint", func() {
		saved := logwatch.Checkpoint{Position: 4096, Inode: 123456}
		Expect(store.Save(saved)).To(Succeed())

		loaded, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(saved))
	})

	It("should treat a corrupt state file as absent", func() {
		path := filepath.Join(dir, "state.json")
		Expect(os.WriteFile(path, []byte(`{"position": 40`), 0o644)).To(Succeed())

		cp, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(Equal(logwatch.Checkpoint{}))
	})

	It("should treat a negative position as corrupt", func() {
		path := filepath.Join(dir, "state.json")
		Expect(os.WriteFile(path, []byte(`{"position":-10,"inode":5}`), 0o644)).To(Succeed())

		cp, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(Equal(logwatch.Checkpoint{}))
	})

	It("should overwrite the previous checkpoint on save", func() {
		Expect(store.Save(logwatch.Checkpoint{Position: 10, Inode: 1})).To(Succeed())
		Expect(store.Save(logwatch.Checkpoint{Position: 20, Inode: 1})).To(Succeed())

		loaded, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Position).To(Equal(int64(20)))
	})

	It("should not leave temp files behind", func() {
		Expect(store.Save(logwatch.Checkpoint{Position: 10, Inode: 1})).To(Succeed())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal("state.json"))
	})
})

var _ = Describe("MemoryCheckpointStore", func() {
	It("should round-trip a checkpoint", func() {
		store := logwatch.NewMemoryCheckpointStore()

		cp, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(Equal(logwatch.Checkpoint{}))

		Expect(store.Save(logwatch.Checkpoint{Position: 7, Inode: 9})).To(Succeed())

		cp, err = store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(Equal(logwatch.Checkpoint{Position: 7, Inode: 9}))
	})
})

package service_test

import (
	"context"
	"reflect"

	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("secret service", func() {
	var (
		s   store.Store
		svc *service.SecretService
	)

	BeforeEach(func() {
		s = store.NewStore(newTestDB())
		DeferCleanup(s.Close)
		svc = service.NewSecretService(s, newTestCipher(1))
	})

	Context("put", func() {
		It("creates then updates a secret", func() {
			created, err := svc.Put(context.TODO(), mappers.SecretPutForm{Name: "OPENAI_API_KEY", Value: "sk-1", Description: "openai"})
			Expect(err).To(BeNil())
			Expect(created).To(BeTrue())

			created, err = svc.Put(context.TODO(), mappers.SecretPutForm{Name: "openai_api_key", Value: "sk-2", Description: "rotated"})
			Expect(err).To(BeNil())
			Expect(created).To(BeFalse())

			value, err := svc.GetDecrypted(context.TODO(), "OpenAI_API_Key")
			Expect(err).To(BeNil())
			Expect(value).To(Equal("sk-2"))

			secrets, err := svc.List(context.TODO())
			Expect(err).To(BeNil())
			Expect(secrets).To(HaveLen(1))
			Expect(secrets[0].Name).To(Equal("openai_api_key"))
			Expect(secrets[0].Description).To(Equal("rotated"))
		})

		It("never stores the value in clear", func() {
			_, err := svc.Put(context.TODO(), mappers.SecretPutForm{Name: "hf_token", Value: "plain-value"})
			Expect(err).To(BeNil())

			sec, err := s.Secret().Get(context.TODO(), "hf_token")
			Expect(err).To(BeNil())
			Expect(sec.EncryptedValue).NotTo(ContainSubstring("plain-value"))
		})
	})

	Context("get", func() {
		It("reports whether a secret is configured", func() {
			configured, err := svc.IsConfigured(context.TODO(), "mistral_api_key")
			Expect(err).To(BeNil())
			Expect(configured).To(BeFalse())

			_, err = svc.Put(context.TODO(), mappers.SecretPutForm{Name: "mistral_api_key", Value: "v"})
			Expect(err).To(BeNil())

			configured, err = svc.IsConfigured(context.TODO(), "MISTRAL_API_KEY")
			Expect(err).To(BeNil())
			Expect(configured).To(BeTrue())
		})

		It("fails for a missing secret", func() {
			_, err := svc.GetDecrypted(context.TODO(), "missing")
			Expect(err).NotTo(BeNil())
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrResourceNotFound{})))
		})

		It("fails to decrypt with another key", func() {
			_, err := svc.Put(context.TODO(), mappers.SecretPutForm{Name: "key", Value: "v"})
			Expect(err).To(BeNil())

			other := service.NewSecretService(s, newTestCipher(2))
			_, err = other.GetDecrypted(context.TODO(), "key")
			Expect(err).NotTo(BeNil())
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrSecretDecryption{})))
		})
	})

	Context("delete", func() {
		It("deletes a secret", func() {
			_, err := svc.Put(context.TODO(), mappers.SecretPutForm{Name: "key", Value: "v"})
			Expect(err).To(BeNil())

			Expect(svc.Delete(context.TODO(), "KEY")).To(Succeed())

			secrets, err := svc.List(context.TODO())
			Expect(err).To(BeNil())
			Expect(secrets).To(BeEmpty())
		})

		It("fails for a missing secret", func() {
			err := svc.Delete(context.TODO(), "missing")
			Expect(err).NotTo(BeNil())
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrResourceNotFound{})))
		})
	})
})
